package vm

import (
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Comparable
// ---------------------------------------------------------------------------

// spaceship sends <=> to self and requires an Integer answer.
func spaceship(f *Frame, other Value) (int64, error) {
	v, err := f.SendTo(f.Self, "<=>", other)
	if err != nil {
		return 0, err
	}
	n, ok := toInt(v)
	if !ok {
		return 0, f.rt.dispatcher.fail(&ComparisonError{Left: f.rt.className(f.Self), Right: f.rt.className(other)})
	}
	return n, nil
}

func comparator(name string, test func(int64) bool) CoreMethod {
	return def1("Comparable", name, func(f *Frame, other Value) (Value, error) {
		n, err := spaceship(f, other)
		if err != nil {
			return nil, err
		}
		return test(n), nil
	})
}

var comparableMethods = []CoreMethod{
	comparator("<", func(n int64) bool { return n < 0 }),
	comparator("<=", func(n int64) bool { return n <= 0 }),
	comparator(">", func(n int64) bool { return n > 0 }),
	comparator(">=", func(n int64) bool { return n >= 0 }),
	def1("Comparable", "==", func(f *Frame, other Value) (Value, error) {
		if sameObject(f.Self, other) {
			return true, nil
		}
		v, err := f.SendTo(f.Self, "<=>", other)
		if err != nil {
			return nil, err
		}
		n, ok := toInt(v)
		return ok && n == 0, nil
	}),
	def2("Comparable", "between?", func(f *Frame, low, high Value) (Value, error) {
		lo, err := spaceship(f, low)
		if err != nil {
			return nil, err
		}
		hi, err := spaceship(f, high)
		if err != nil {
			return nil, err
		}
		return lo >= 0 && hi <= 0, nil
	}),
}

// ---------------------------------------------------------------------------
// nil, true, false
// ---------------------------------------------------------------------------

var nilMethods = []CoreMethod{
	def0("NilClass", "nil?", func(f *Frame) (Value, error) { return true, nil }),
	def0("NilClass", "to_s", func(f *Frame) (Value, error) { return "", nil }),
	def0("NilClass", "to_a", func(f *Frame) (Value, error) { return []Value{}, nil }),
	def0("NilClass", "inspect", func(f *Frame) (Value, error) { return "nil", nil }),
	def1("NilClass", "&", func(f *Frame, other Value) (Value, error) { return false, nil }),
	def1("NilClass", "|", func(f *Frame, other Value) (Value, error) { return Truthy(other), nil }),
}

var booleanMethods = []CoreMethod{
	def0("TrueClass", "to_s", func(f *Frame) (Value, error) { return "true", nil }),
	def1("TrueClass", "&", func(f *Frame, other Value) (Value, error) { return Truthy(other), nil }),
	def1("TrueClass", "|", func(f *Frame, other Value) (Value, error) { return true, nil }),
	def1("TrueClass", "^", func(f *Frame, other Value) (Value, error) { return !Truthy(other), nil }),
	def0("FalseClass", "to_s", func(f *Frame) (Value, error) { return "false", nil }),
	def1("FalseClass", "&", func(f *Frame, other Value) (Value, error) { return false, nil }),
	def1("FalseClass", "|", func(f *Frame, other Value) (Value, error) { return Truthy(other), nil }),
	def1("FalseClass", "^", func(f *Frame, other Value) (Value, error) { return Truthy(other), nil }),
}

// ---------------------------------------------------------------------------
// Integer
// ---------------------------------------------------------------------------

func coerceError(f *Frame, arg Value, into string) error {
	return &TypeError{Message: f.rt.className(arg) + " can't be coerced into " + into}
}

// intOp defines a binary Integer operator. A Float argument switches to
// float arithmetic through fop. Integer results that leave the int64 range
// are a RangeError rather than wrapping.
func intOp(name string, op func(a, b int64) (Value, error), fop func(a, b float64) Value) CoreMethod {
	return def1("Integer", name, func(f *Frame, arg Value) (Value, error) {
		a, _ := toInt(f.Self)
		if b, ok := toInt(arg); ok {
			return op(a, b)
		}
		if b, ok := arg.(float64); ok {
			return fop(float64(a), b), nil
		}
		return nil, coerceError(f, arg, "Integer")
	})
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func overflow(a int64, op string, b int64) error {
	return &RangeError{Message: "integer overflow: " + strconv.FormatInt(a, 10) + " " + op + " " + strconv.FormatInt(b, 10) + " exceeds 64 bits"}
}

func addInt(a, b int64) (Value, error) {
	c := a + b
	if (a^c)&(b^c) < 0 {
		return nil, overflow(a, "+", b)
	}
	return c, nil
}

func subInt(a, b int64) (Value, error) {
	c := a - b
	if (a^b)&(a^c) < 0 {
		return nil, overflow(a, "-", b)
	}
	return c, nil
}

func mulInt(a, b int64) (Value, error) {
	if a == 0 || b == 0 {
		return int64(0), nil
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return nil, overflow(a, "*", b)
	}
	return c, nil
}

func divInt(a, b int64) (Value, error) {
	if b == 0 {
		return nil, &ZeroDivisionError{}
	}
	if a == math.MinInt64 && b == -1 {
		return nil, overflow(a, "/", b)
	}
	return floorDiv(a, b), nil
}

func negInt(a int64) (Value, error) {
	if a == math.MinInt64 {
		return nil, &RangeError{Message: "integer overflow: -(" + strconv.FormatInt(a, 10) + ") exceeds 64 bits"}
	}
	return -a, nil
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func cmpFloat(a, b float64) Value {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return nil
	case a < b:
		return int64(-1)
	case a > b:
		return int64(1)
	}
	return int64(0)
}

func cmpInt(a, b int64) Value {
	switch {
	case a < b:
		return int64(-1)
	case a > b:
		return int64(1)
	}
	return int64(0)
}

var integerMethods = join(
	[]CoreMethod{
		intOp("+", addInt, func(a, b float64) Value { return a + b }),
		intOp("-", subInt, func(a, b float64) Value { return a - b }),
		intOp("*", mulInt, func(a, b float64) Value { return a * b }),
		intOp("/", divInt, func(a, b float64) Value { return a / b }),
		intOp("%", func(a, b int64) (Value, error) {
			if b == 0 {
				return nil, &ZeroDivisionError{}
			}
			return floorMod(a, b), nil
		}, func(a, b float64) Value { return a - b*math.Floor(a/b) }),
		def1("Integer", "<=>", func(f *Frame, arg Value) (Value, error) {
			a, _ := toInt(f.Self)
			if b, ok := toInt(arg); ok {
				return cmpInt(a, b), nil
			}
			if b, ok := arg.(float64); ok {
				return cmpFloat(float64(a), b), nil
			}
			return nil, nil
		}),
		def1("Integer", "==", func(f *Frame, arg Value) (Value, error) {
			a, _ := toInt(f.Self)
			if b, ok := toInt(arg); ok {
				return a == b, nil
			}
			if b, ok := arg.(float64); ok {
				return float64(a) == b, nil
			}
			return false, nil
		}),
		def0("Integer", "succ", func(f *Frame) (Value, error) {
			a, _ := toInt(f.Self)
			return addInt(a, 1)
		}),
		def0("Integer", "zero?", func(f *Frame) (Value, error) {
			a, _ := toInt(f.Self)
			return a == 0, nil
		}),
		def0("Integer", "abs", func(f *Frame) (Value, error) {
			a, _ := toInt(f.Self)
			if a < 0 {
				return negInt(a)
			}
			return a, nil
		}),
		def0("Integer", "-@", func(f *Frame) (Value, error) {
			a, _ := toInt(f.Self)
			return negInt(a)
		}),
		def0("Integer", "to_f", func(f *Frame) (Value, error) {
			a, _ := toInt(f.Self)
			return float64(a), nil
		}),
		def0("Integer", "to_i", func(f *Frame) (Value, error) {
			a, _ := toInt(f.Self)
			return a, nil
		}),
	},
	aliases(def0("Integer", "to_s", func(f *Frame) (Value, error) {
		a, _ := toInt(f.Self)
		return strconv.FormatInt(a, 10), nil
	}), "inspect"),
)

// ---------------------------------------------------------------------------
// Float
// ---------------------------------------------------------------------------

func floatArg(v Value) (float64, bool) {
	if n, ok := toInt(v); ok {
		return float64(n), true
	}
	x, ok := v.(float64)
	return x, ok
}

func floatOp(name string, op func(a, b float64) float64) CoreMethod {
	return def1("Float", name, func(f *Frame, arg Value) (Value, error) {
		b, ok := floatArg(arg)
		if !ok {
			return nil, coerceError(f, arg, "Float")
		}
		return op(f.Self.(float64), b), nil
	})
}

var floatMethods = join(
	[]CoreMethod{
		floatOp("+", func(a, b float64) float64 { return a + b }),
		floatOp("-", func(a, b float64) float64 { return a - b }),
		floatOp("*", func(a, b float64) float64 { return a * b }),
		floatOp("/", func(a, b float64) float64 { return a / b }),
		def1("Float", "<=>", func(f *Frame, arg Value) (Value, error) {
			b, ok := floatArg(arg)
			if !ok {
				return nil, nil
			}
			return cmpFloat(f.Self.(float64), b), nil
		}),
		def1("Float", "==", func(f *Frame, arg Value) (Value, error) {
			b, ok := floatArg(arg)
			return ok && f.Self.(float64) == b, nil
		}),
		def0("Float", "to_i", func(f *Frame) (Value, error) {
			return int64(f.Self.(float64)), nil
		}),
		def0("Float", "to_f", func(f *Frame) (Value, error) { return f.Self, nil }),
		def0("Float", "abs", func(f *Frame) (Value, error) { return math.Abs(f.Self.(float64)), nil }),
		def0("Float", "zero?", func(f *Frame) (Value, error) { return f.Self.(float64) == 0, nil }),
		def0("Float", "-@", func(f *Frame) (Value, error) { return -f.Self.(float64), nil }),
	},
	aliases(def0("Float", "to_s", func(f *Frame) (Value, error) {
		return formatFloat(f.Self.(float64)), nil
	}), "inspect"),
)

// ---------------------------------------------------------------------------
// String and Symbol
// ---------------------------------------------------------------------------

var stringMethods = join(
	[]CoreMethod{
		def1("String", "+", func(f *Frame, arg Value) (Value, error) {
			s, ok := arg.(string)
			if !ok {
				return nil, &TypeError{Message: "no implicit conversion of " + f.rt.className(arg) + " into String"}
			}
			return f.Self.(string) + s, nil
		}),
		def1("String", "*", func(f *Frame, arg Value) (Value, error) {
			n, ok := toInt(arg)
			if !ok {
				return nil, &TypeError{Message: "no implicit conversion of " + f.rt.className(arg) + " into Integer"}
			}
			if n < 0 {
				return nil, &TypeError{Message: "negative argument"}
			}
			return strings.Repeat(f.Self.(string), int(n)), nil
		}),
		def1("String", "<=>", func(f *Frame, arg Value) (Value, error) {
			s, ok := arg.(string)
			if !ok {
				return nil, nil
			}
			return int64(strings.Compare(f.Self.(string), s)), nil
		}),
		def1("String", "==", func(f *Frame, arg Value) (Value, error) {
			s, ok := arg.(string)
			return ok && f.Self.(string) == s, nil
		}),
		def0("String", "to_s", func(f *Frame) (Value, error) { return f.Self, nil }),
		def0("String", "to_sym", func(f *Frame) (Value, error) { return f.rt.Intern(f.Self.(string)), nil }),
		def0("String", "upcase", func(f *Frame) (Value, error) { return strings.ToUpper(f.Self.(string)), nil }),
		def0("String", "downcase", func(f *Frame) (Value, error) { return strings.ToLower(f.Self.(string)), nil }),
		def0("String", "empty?", func(f *Frame) (Value, error) { return f.Self.(string) == "", nil }),
		def0("String", "inspect", func(f *Frame) (Value, error) { return strconv.Quote(f.Self.(string)), nil }),
		singleton(defN("String", "new", Arity{Optional: 1}, func(f *Frame, args []Value) (Value, error) {
			if len(args) == 0 {
				return "", nil
			}
			s, ok := args[0].(string)
			if !ok {
				return nil, &TypeError{Message: "no implicit conversion of " + f.rt.className(args[0]) + " into String"}
			}
			return s, nil
		})),
	},
	aliases(def0("String", "length", func(f *Frame) (Value, error) {
		return int64(len([]rune(f.Self.(string)))), nil
	}), "size"),
)

var symbolMethods = join(
	[]CoreMethod{
		def0("Symbol", "to_sym", func(f *Frame) (Value, error) { return f.Self, nil }),
		def0("Symbol", "inspect", func(f *Frame) (Value, error) { return f.rt.Inspect(f.Self), nil }),
		def1("Symbol", "<=>", func(f *Frame, arg Value) (Value, error) {
			s, ok := arg.(Symbol)
			if !ok {
				return nil, nil
			}
			return int64(strings.Compare(f.rt.Symbols.Name(f.Self.(Symbol)), f.rt.Symbols.Name(s))), nil
		}),
		def0("Symbol", "length", func(f *Frame) (Value, error) {
			return int64(len([]rune(f.rt.Symbols.Name(f.Self.(Symbol))))), nil
		}),
	},
	aliases(def0("Symbol", "to_s", func(f *Frame) (Value, error) {
		return f.rt.Symbols.Name(f.Self.(Symbol)), nil
	}), "id2name", "name"),
)
