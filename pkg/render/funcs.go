package render

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GeneratorFunc evaluates one template function call. Args are the
// parsed literal arguments; a returned error aborts the whole render
// (evaluation failures are real failures, unlike syntax problems).
type GeneratorFunc func(args []any) (any, error)

// generators is the fixed function library available inside {{ }}
// expressions. The set is closed; stacks cannot register new ones.
var generators = map[string]GeneratorFunc{
	"generate_password":      genPassword,
	"generate_secret":        genSecret,
	"random_string":          genRandomString,
	"generate_uuid":          genUUID,
	"generate_uuid_short":    genUUIDShort,
	"base64_encode":          genBase64Encode,
	"base64_decode":          genBase64Decode,
	"hash_value":             genHashValue,
	"random_port":            genRandomPort,
	"get_valid_port":         genValidPort,
	"env":                    genEnv,
	"now":                    genNow,
	"random_choice":          genRandomChoice,
	"generate_animalname":    genAnimalName,
	"generate_cosmicname":    genCosmicName,
	"generate_mythologyname": genMythologyName,
}

const (
	charsetAlpha        = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetNumeric      = "0123456789"
	charsetAlphanumeric = charsetAlpha + charsetNumeric
	charsetHex          = "0123456789abcdef"
	charsetSpecial      = "!@#$%^&*()-_=+"
)

// randInt returns a uniform random int in [0, n) from crypto/rand.
func randInt(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("randInt: non-positive bound %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random source failed: %w", err)
	}
	return int(v.Int64()), nil
}

func randomFrom(charset string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", length)
	}
	b := make([]byte, length)
	for i := range b {
		idx, err := randInt(len(charset))
		if err != nil {
			return "", err
		}
		b[i] = charset[idx]
	}
	return string(b), nil
}

// argInt reads args[i] as an integer, falling back to def when absent.
func argInt(args []any, i, def int) (int, error) {
	if i >= len(args) {
		return def, nil
	}
	switch v := args[i].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("argument %d: expected integer, got %T", i+1, args[i])
	}
}

func argString(args []any, i int, def string) (string, error) {
	if i >= len(args) {
		return def, nil
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %T", i+1, args[i])
	}
	return s, nil
}

func argBool(args []any, i int, def bool) (bool, error) {
	if i >= len(args) {
		return def, nil
	}
	b, ok := args[i].(bool)
	if !ok {
		return false, fmt.Errorf("argument %d: expected boolean, got %T", i+1, args[i])
	}
	return b, nil
}

// genPassword: generate_password(length=24, include_special=true).
// Cryptographically strong; guaranteed printable.
func genPassword(args []any) (any, error) {
	length, err := argInt(args, 0, 24)
	if err != nil {
		return nil, err
	}
	special, err := argBool(args, 1, true)
	if err != nil {
		return nil, err
	}
	charset := charsetAlphanumeric
	if special {
		charset += charsetSpecial
	}
	return randomFrom(charset, length)
}

// genSecret: generate_secret(length=32) → lowercase hex of the given
// character length.
func genSecret(args []any) (any, error) {
	length, err := argInt(args, 0, 32)
	if err != nil {
		return nil, err
	}
	return randomFrom(charsetHex, length)
}

// genRandomString: random_string(length, charset="alphanumeric").
func genRandomString(args []any) (any, error) {
	length, err := argInt(args, 0, 16)
	if err != nil {
		return nil, err
	}
	name, err := argString(args, 1, "alphanumeric")
	if err != nil {
		return nil, err
	}
	var charset string
	switch name {
	case "alphanumeric":
		charset = charsetAlphanumeric
	case "alpha":
		charset = charsetAlpha
	case "numeric":
		charset = charsetNumeric
	case "hex":
		charset = charsetHex
	default:
		return nil, fmt.Errorf("unknown charset %q (want alphanumeric, alpha, numeric or hex)", name)
	}
	return randomFrom(charset, length)
}

func genUUID(args []any) (any, error) {
	return uuid.NewString(), nil
}

// genUUIDShort returns the first UUID block (8 hex chars).
func genUUIDShort(args []any) (any, error) {
	return uuid.NewString()[:8], nil
}

func genBase64Encode(args []any) (any, error) {
	s, err := argString(args, 0, "")
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.EncodeToString([]byte(s)), nil
}

func genBase64Decode(args []any) (any, error) {
	s, err := argString(args, 0, "")
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("base64_decode: %w", err)
	}
	return string(raw), nil
}

// genHashValue: hash_value(value, algo="sha256") → lowercase hex digest.
func genHashValue(args []any) (any, error) {
	s, err := argString(args, 0, "")
	if err != nil {
		return nil, err
	}
	algo, err := argString(args, 1, "sha256")
	if err != nil {
		return nil, err
	}
	switch algo {
	case "sha256":
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:]), nil
	case "sha512":
		sum := sha512.Sum512([]byte(s))
		return hex.EncodeToString(sum[:]), nil
	case "md5":
		sum := md5.Sum([]byte(s))
		return hex.EncodeToString(sum[:]), nil
	case "sha1":
		sum := sha1.Sum([]byte(s))
		return hex.EncodeToString(sum[:]), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q (want sha256, sha512, md5 or sha1)", algo)
	}
}

// genRandomPort: random_port(min=10000, max=65535). No availability
// check; use get_valid_port when the port must be bindable.
func genRandomPort(args []any) (any, error) {
	lo, err := argInt(args, 0, 10000)
	if err != nil {
		return nil, err
	}
	hi, err := argInt(args, 1, 65535)
	if err != nil {
		return nil, err
	}
	if lo < 1 || hi > 65535 || lo > hi {
		return nil, fmt.Errorf("invalid port range %d-%d", lo, hi)
	}
	n, err := randInt(hi - lo + 1)
	if err != nil {
		return nil, err
	}
	return lo + n, nil
}

// genValidPort: get_valid_port(start=5432, max_attempts=100) walks
// forward from start and returns the first port a local TCP bind on
// 0.0.0.0 accepts. Exhausting the attempts is an evaluation failure
// (the worker treats it as transient and retries).
func genValidPort(args []any) (any, error) {
	start, err := argInt(args, 0, 5432)
	if err != nil {
		return nil, err
	}
	attempts, err := argInt(args, 1, 100)
	if err != nil {
		return nil, err
	}
	for i := 0; i < attempts; i++ {
		port := start + i
		if port > 65535 {
			break
		}
		l, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
		if err != nil {
			continue
		}
		l.Close()
		return port, nil
	}
	return nil, fmt.Errorf("no free port found in %d attempts from %d", attempts, start)
}

func genEnv(args []any) (any, error) {
	name, err := argString(args, 0, "")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("env: variable name required")
	}
	def, err := argString(args, 1, "")
	if err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	return def, nil
}

// strftime directives supported by now(). Unknown directives pass
// through verbatim.
var strftimeToGo = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'z': "-0700",
	'Z': "MST",
}

func strftimeLayout(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] == '%' && i+1 < len(format) {
			if format[i+1] == '%' {
				b.WriteByte('%')
				i++
				continue
			}
			if layout, ok := strftimeToGo[format[i+1]]; ok {
				b.WriteString(layout)
				i++
				continue
			}
		}
		b.WriteByte(format[i])
	}
	return b.String()
}

// genNow: now(format="%Y-%m-%d %H:%M:%S") in local time.
func genNow(args []any) (any, error) {
	format, err := argString(args, 0, "%Y-%m-%d %H:%M:%S")
	if err != nil {
		return nil, err
	}
	return time.Now().Format(strftimeLayout(format)), nil
}

func genRandomChoice(args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("random_choice: at least one option required")
	}
	idx, err := randInt(len(args))
	if err != nil {
		return nil, err
	}
	return args[idx], nil
}
