package bytecode

// ZeroValue returns the JVM language-default zero value for a field
// descriptor, used by the instance reconciler (C7) to initialize
// newly-added field slots (spec.md §4.7).
func ZeroValue(descriptor string) any {
	if descriptor == "" {
		return nil
	}
	switch descriptor[0] {
	case 'Z':
		return false
	case 'B', 'S', 'I':
		return int32(0)
	case 'J':
		return int64(0)
	case 'F':
		return float32(0)
	case 'D':
		return float64(0)
	case 'C':
		return rune(0)
	default: // 'L' (object) or '[' (array)
		return nil
	}
}
