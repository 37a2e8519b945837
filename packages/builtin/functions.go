package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotACall is returned by Call when the expression is not of the form
// name(args).
var ErrNotACall = errors.New("not a function call")

// UnknownFunctionError is returned when a call names an unregistered function.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

type Func func(args []string) (any, error)

type Registry struct {
	funcs map[string]Func
	now   func() time.Time
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["uuid"] = func(_ []string) (any, error) { return uuid.NewString(), nil }
	r.funcs["now"] = r.funcNow
	r.funcs["timestamp"] = func(_ []string) (any, error) { return r.now().Unix(), nil }
	r.funcs["timestampMs"] = func(_ []string) (any, error) { return r.now().UnixMilli(), nil }
	r.funcs["date"] = r.funcDate
	r.funcs["dateMDY"] = r.funcDateMDY
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["randomPhone"] = funcRandomPhone
	r.funcs["base64"] = oneArg(func(s string) any { return base64.StdEncoding.EncodeToString([]byte(s)) })
	r.funcs["base64Decode"] = funcBase64Decode
	r.funcs["md5"] = oneArg(func(s string) any { h := md5.Sum([]byte(s)); return hex.EncodeToString(h[:]) })
	r.funcs["sha256"] = oneArg(func(s string) any { h := sha256.Sum256([]byte(s)); return hex.EncodeToString(h[:]) })
	r.funcs["urlEncode"] = oneArg(func(s string) any { return url.QueryEscape(s) })
	r.funcs["upper"] = oneArg(func(s string) any { return strings.ToUpper(s) })
	r.funcs["lower"] = oneArg(func(s string) any { return strings.ToLower(s) })
	r.funcs["env"] = funcEnv
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr looks like name(args).
func IsCall(expr string) bool {
	return funcCallPattern.MatchString(strings.TrimSpace(expr))
}

// Call evaluates an expression such as uuid() or randomString(8).
func (r *Registry) Call(expr string) (any, error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return nil, ErrNotACall
	}

	name := matches[1]
	fn, ok := r.funcs[name]
	if !ok {
		return nil, &UnknownFunctionError{Name: name}
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	v, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", name, err)
	}
	return v, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func oneArg(fn func(string) any) Func {
	return func(args []string) (any, error) {
		if len(args) < 1 {
			return nil, errors.New("expected one argument")
		}
		return fn(args[0]), nil
	}
}

func intArg(args []string, i, def int) (int, error) {
	if len(args) <= i || args[i] == "" {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d: %q is not an integer", i+1, args[i])
	}
	return v, nil
}

func (r *Registry) funcNow(args []string) (any, error) {
	layout := time.RFC3339
	if len(args) >= 1 && args[0] != "" {
		layout = args[0]
	}
	return r.now().UTC().Format(layout), nil
}

// funcDate formats today shifted by an optional number of days.
func (r *Registry) funcDate(args []string) (any, error) {
	offset, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	layout := "2006-01-02"
	if len(args) >= 2 && args[1] != "" {
		layout = args[1]
	}
	return r.now().UTC().AddDate(0, 0, offset).Format(layout), nil
}

func (r *Registry) funcDateMDY(args []string) (any, error) {
	offset, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	return r.now().UTC().AddDate(0, 0, offset).Format("01/02/06"), nil
}

func funcRandom(args []string) (any, error) {
	lo, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	hi, err := intArg(args, 1, 100)
	if err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, fmt.Errorf("max %d is lower than min %d", hi, lo)
	}
	return rand.Intn(hi-lo+1) + lo, nil
}

func funcRandomString(args []string) (any, error) {
	length, err := intArg(args, 0, 16)
	if err != nil {
		return nil, err
	}
	return randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"), nil
}

func funcRandomEmail(_ []string) (any, error) {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	domain := randomString(6, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("%s@%s.com", user, domain), nil
}

func funcRandomPhone(_ []string) (any, error) {
	return fmt.Sprintf("%03d-%03d-%04d", 200+rand.Intn(800), 200+rand.Intn(800), rand.Intn(10000)), nil
}

func funcBase64Decode(args []string) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("expected one argument")
	}
	decoded, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		return nil, err
	}
	return string(decoded), nil
}

// funcEnv reads an environment variable with an optional default.
func funcEnv(args []string) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("expected a variable name")
	}
	if v, ok := os.LookupEnv(args[0]); ok {
		return v, nil
	}
	if len(args) >= 2 {
		return args[1], nil
	}
	return nil, fmt.Errorf("environment variable %s is not set", args[0])
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
