package bytecode

// ExceptionHandler describes one exception table entry by byte offsets.
type ExceptionHandler struct {
	From   int // first covered offset
	To     int // end of the covered range (exclusive)
	Target int // offset of the handler code
}

// Covers reports whether the instruction starting at offset is protected.
func (h ExceptionHandler) Covers(offset int) bool {
	return offset >= h.From && offset < h.To
}
