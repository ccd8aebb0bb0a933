package optimizer

import "jsonopt/internal/pipeline"

// isPosition reports whether p was actually recorded. Lines are 1-based, so
// the zero value means "no position".
func isPosition(p pipeline.Position) bool {
	return p.Line > 0 && p.Column >= 0
}

func isSamePosition(a, b pipeline.Position) bool {
	return a.Line == b.Line && a.Column == b.Column
}

// isLocation reports whether loc is present and carries both positions.
func isLocation(loc *pipeline.Location) bool {
	return loc != nil && isPosition(loc.Start) && isPosition(loc.End)
}

// isSameLocation reports whether two locations cover the same source span.
func isSameLocation(a, b *pipeline.Location) bool {
	return isSamePosition(a.Start, b.Start) && isSamePosition(a.End, b.End)
}
