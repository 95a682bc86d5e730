package adjust

// affine is a colour transform v' = M·v + b on linear [0,1] RGB, following the
// CSS Filter Effects definitions of each primitive.
type affine struct {
	m [3][3]float64
	b [3]float64
}

func diag(a, offset float64) affine {
	return affine{
		m: [3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}},
		b: [3]float64{offset, offset, offset},
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (f Filter) affine() affine {
	switch f.Kind {
	case Brightness:
		return diag(f.Amount, 0)
	case Contrast:
		return diag(f.Amount, 0.5-0.5*f.Amount)
	case Grayscale:
		s := 1 - clampUnit(f.Amount)
		return affine{m: [3][3]float64{
			{0.2126 + 0.7874*s, 0.7152 - 0.7152*s, 0.0722 - 0.0722*s},
			{0.2126 - 0.2126*s, 0.7152 + 0.2848*s, 0.0722 - 0.0722*s},
			{0.2126 - 0.2126*s, 0.7152 - 0.7152*s, 0.0722 + 0.9278*s},
		}}
	case Sepia:
		s := 1 - clampUnit(f.Amount)
		return affine{m: [3][3]float64{
			{0.393 + 0.607*s, 0.769 - 0.769*s, 0.189 - 0.189*s},
			{0.349 - 0.349*s, 0.686 + 0.314*s, 0.168 - 0.168*s},
			{0.272 - 0.272*s, 0.534 - 0.534*s, 0.131 + 0.869*s},
		}}
	default:
		return diag(1, 0)
	}
}

// apply transforms one colour and clamps the result, as each filter
// primitive renders into a clamped intermediate image.
func (t *affine) apply(c [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = clampUnit(t.m[i][0]*c[0] + t.m[i][1]*c[1] + t.m[i][2]*c[2] + t.b[i])
	}
	return out
}

// chain is a compiled filter list.
type chain []affine

func compile(filters []Filter) chain {
	c := make(chain, len(filters))
	for i, f := range filters {
		c[i] = f.affine()
	}
	return c
}

func (c chain) apply(v [3]float64) [3]float64 {
	for i := range c {
		v = c[i].apply(v)
	}
	return v
}
