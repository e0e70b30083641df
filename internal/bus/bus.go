package bus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

const (
	SockName = "control.sock"
	PidName  = "holdtype.pid"
	ProtoVer = "1"
)

// Verbs understood by the daemon.
const (
	VerbStatus     = "status"
	VerbPress      = "press"
	VerbRelease    = "release"
	VerbQuit       = "quit"
	VerbVersion    = "version"
	VerbDictAdd    = "dict-add"
	VerbDictList   = "dict-list"
	VerbDictRemove = "dict-rm"
	VerbDictImport = "dict-import"
	VerbSnipAdd    = "snip-add"
	VerbSnipList   = "snip-list"
	VerbSnipRemove = "snip-rm"
	VerbHistory    = "history"
	VerbStyle      = "style"
	VerbHotkey     = "hotkey"
)

var (
	ErrEmptyRequest     = errors.New("bus: empty request")
	ErrDaemonNotRunning = errors.New("daemon is not running (start it with holdtype serve)")
)

// Dir is ~/.cache/holdtype.
func Dir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "holdtype"), nil
}

// ~/.cache/holdtype/control.sock
func SockPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SockName), nil
}

// ~/.cache/holdtype/holdtype.pid
func PidPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PidName), nil
}

// Request is one command line: a verb followed by arguments. Arguments
// containing spaces or quotes travel Go-quoted.
type Request struct {
	Verb string
	Args []string
}

func (r Request) Arg(i int) string {
	if i < len(r.Args) {
		return r.Args[i]
	}
	return ""
}

func (r Request) String() string {
	parts := make([]string, 0, len(r.Args)+1)
	parts = append(parts, r.Verb)
	for _, a := range r.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(a string) string {
	if a == "" || strings.ContainsFunc(a, func(r rune) bool {
		return unicode.IsSpace(r) || r == '"' || r == '\\' || !unicode.IsPrint(r)
	}) {
		return strconv.Quote(a)
	}
	return a
}

func ParseRequest(line string) (Request, error) {
	var fields []string
	rest := strings.TrimSpace(line)
	for rest != "" {
		if rest[0] == '"' {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return Request{}, fmt.Errorf("bus: bad quoting in %q", line)
			}
			v, err := strconv.Unquote(quoted)
			if err != nil {
				return Request{}, fmt.Errorf("bus: bad quoting in %q", line)
			}
			fields = append(fields, v)
			rest = rest[len(quoted):]
		} else {
			end := strings.IndexFunc(rest, unicode.IsSpace)
			if end < 0 {
				end = len(rest)
			}
			fields = append(fields, rest[:end])
			rest = rest[end:]
		}
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	}
	if len(fields) == 0 {
		return Request{}, ErrEmptyRequest
	}
	return Request{Verb: strings.ToLower(fields[0]), Args: fields[1:]}, nil
}

// Response is the single reply line: "OK <body>" or "ERR <message>".
// Structured bodies are JSON so they stay on one line.
type Response struct {
	OK   bool
	Body string
}

func OK(body string) Response { return Response{OK: true, Body: body} }

func Errorf(format string, args ...any) Response {
	return Response{Body: fmt.Sprintf(format, args...)}
}

func (r Response) String() string {
	prefix := "ERR"
	if r.OK {
		prefix = "OK"
	}
	body := strings.NewReplacer("\r", " ", "\n", " ").Replace(r.Body)
	if body == "" {
		return prefix
	}
	return prefix + " " + body
}

func ParseResponse(line string) (Response, error) {
	line = strings.TrimRight(line, "\r\n")
	verb, body, _ := strings.Cut(line, " ")
	switch verb {
	case "OK":
		return Response{OK: true, Body: body}, nil
	case "ERR":
		return Response{Body: body}, nil
	default:
		return Response{}, fmt.Errorf("bus: malformed response %q", line)
	}
}

// RemoteError is an ERR reply from the daemon.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Status is the body of a status reply.
type Status struct {
	State           string `json:"state"`
	Preview         string `json:"preview,omitempty"`
	ModelLoaded     bool   `json:"model_loaded"`
	User            string `json:"user"`
	Hotkey          string `json:"hotkey"`
	HotkeyAvailable bool   `json:"hotkey_available"`
	Notice          string `json:"notice,omitempty"`
	Version         string `json:"version"`
	Proto           string `json:"proto"`
}
