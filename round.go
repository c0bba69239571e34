package kalyna

// column returns the XOR of the eight forward table lookups feeding word i of the next state. Byte j
// is read from the word j*n/8 positions before i, wrapping around the state.
func column(x []uint64, i int) uint64 {
	n := len(x)
	var v uint64
	for j := range 8 {
		v ^= fwd[j][byte(x[(i+n-j*n/8)%n]>>(8*j))]
	}
	return v
}

// invColumn mirrors column for the inverse tables, reading j*n/8 positions after i.
func invColumn(x []uint64, i int) uint64 {
	n := len(x)
	var v uint64
	for j := range 8 {
		v ^= inv[j][byte(x[(i+j*n/8)%n]>>(8*j))]
	}
	return v
}

// g0 is the unkeyed round transform.
func g0(y, x []uint64) {
	for i := range y {
		y[i] = column(x, i)
	}
}

// g is the round transform with XOR key addition.
func g(y, x, k []uint64) {
	for i := range y {
		y[i] = k[i] ^ column(x, i)
	}
}

// gl is the round transform with modular key addition.
func gl(y, x, k []uint64) {
	for i := range y {
		y[i] = k[i] + column(x, i)
	}
}

// ig inverts g.
func ig(y, x, k []uint64) {
	for i := range y {
		y[i] = k[i] ^ invColumn(x, i)
	}
}

// igl is the final inverse round: byte-wise inverse substitution followed by modular key
// subtraction.
func igl(y, x, k []uint64) {
	n := len(x)
	for i := range y {
		var v uint64
		for j := range 8 {
			v |= uint64(sboxInv[j%4][byte(x[(i+j*n/8)%n]>>(8*j))]) << (8 * j)
		}
		y[i] = v - k[i]
	}
}

// imc applies the inverse diffusion layer to x in place.
func imc(x []uint64) {
	for i, w := range x {
		var v uint64
		for j := range 8 {
			v ^= inv[j][sbox[j%4][byte(w>>(8*j))]]
		}
		x[i] = v
	}
}

func add(y, x, k []uint64) {
	for i := range y {
		y[i] = x[i] + k[i]
	}
}
