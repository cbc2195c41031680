package lexer

import "errors"

// errOctalRange is returned by Unescape for octal escapes above 255.
var errOctalRange = errors.New("octal escape out of range (> 255)")

// Unescape replaces backslash escapes in b. Unknown escapes are kept as
// is. The result may not be valid UTF-8.
func Unescape(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		c := b[i+1]
		switch c {
		case '\\', '"', '\'':
			out = append(out, c)
			i++
		case 'a':
			out = append(out, '\a')
			i++
		case 'b':
			out = append(out, '\b')
			i++
		case 't':
			out = append(out, '\t')
			i++
		case 'n':
			out = append(out, '\n')
			i++
		case 'v':
			out = append(out, '\v')
			i++
		case 'f':
			out = append(out, '\f')
			i++
		case 'r':
			out = append(out, '\r')
			i++
		case 'x':
			j := i + 2
			v := 0
			for j < len(b) && j < i+4 && isHexDigit(b[j]) {
				v = v*16 + hexValue(b[j])
				j++
			}
			if j == i+2 {
				// '\x' without digits
				out = append(out, '\\')
				continue
			}
			out = append(out, byte(v))
			i = j - 1
		default:
			if !isOctalDigit(c) {
				out = append(out, '\\')
				continue
			}
			j := i + 1
			v := 0
			for j < len(b) && j < i+4 && isOctalDigit(b[j]) {
				v = v*8 + int(b[j]-'0')
				j++
			}
			if v > 255 {
				return nil, errOctalRange
			}
			out = append(out, byte(v))
			i = j - 1
		}
	}
	return out, nil
}

func isOctalDigit(b byte) bool {
	return b >= '0' && b <= '7'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexValue(b byte) int {
	switch {
	case isDigit(b):
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	default:
		return int(b-'A') + 10
	}
}
