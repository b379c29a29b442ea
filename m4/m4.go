// Package m4 implements 4x4 transformation matrices and a matrix stack
// for composing nested transforms during drawing.
package m4

// Matrix is a 4x4 row-major transformation matrix.
type Matrix [16]float32

// Identity resets m to the identity matrix.
func (m *Matrix) Identity() {
	*m = Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Copy copies src into m.
func (m *Matrix) Copy(src *Matrix) {
	*m = *src
}

// Mult multiplies m by n and stores the result in m, that is m = m·n.
func (m *Matrix) Mult(n *Matrix) {
	var res Matrix
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[row*4+k] * n[k*4+col]
			}
			res[row*4+col] = sum
		}
	}
	*m = res
}

// Translate applies a translation by (x, y, z) to m.
func (m *Matrix) Translate(x, y, z float32) {
	t := Matrix{
		1, 0, 0, x,
		0, 1, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
	m.Mult(&t)
}

// Scale applies a scale by (x, y, z) to m.
func (m *Matrix) Scale(x, y, z float32) {
	s := Matrix{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
	m.Mult(&s)
}

// Transpose transposes m in place.
func (m *Matrix) Transpose() {
	for row := 0; row < 4; row++ {
		for col := row + 1; col < 4; col++ {
			m[row*4+col], m[col*4+row] = m[col*4+row], m[row*4+col]
		}
	}
}

// TransposeTo stores the transpose of m in dest, leaving m untouched.
func (m *Matrix) TransposeTo(dest *Matrix) {
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			dest[col*4+row] = m[row*4+col]
		}
	}
}
