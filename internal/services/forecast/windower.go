package forecast

// Windows holds input/label pairs in ascending chronological order.
type Windows struct {
	Inputs [][]float64
	Labels []float64
}

// Len returns the number of windows.
func (w Windows) Len() int { return len(w.Labels) }

// MakeWindows emits, for every i in [windowLen, len(seq)), the input
// seq[i-windowLen:i] and the label seq[i]. It yields max(0, len(seq)-windowLen)
// windows. Inputs share seq's backing array and must not be mutated.
func MakeWindows(seq []float64, windowLen int) Windows {
	if windowLen <= 0 || len(seq) <= windowLen {
		return Windows{}
	}
	n := len(seq) - windowLen
	w := Windows{
		Inputs: make([][]float64, 0, n),
		Labels: make([]float64, 0, n),
	}
	for i := windowLen; i < len(seq); i++ {
		w.Inputs = append(w.Inputs, seq[i-windowLen:i:i])
		w.Labels = append(w.Labels, seq[i])
	}
	return w
}

// TrailingWindow returns the last windowLen values of seq, which have no label.
func TrailingWindow(seq []float64, windowLen int) ([]float64, bool) {
	if windowLen <= 0 || len(seq) < windowLen {
		return nil, false
	}
	return seq[len(seq)-windowLen:], true
}
