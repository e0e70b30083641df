package bus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		line    string
		want    Request
		wantErr bool
	}{
		{line: "status\n", want: Request{Verb: "status", Args: []string{}}},
		{line: "  DICT-ADD ShadCN ", want: Request{Verb: "dict-add", Args: []string{"ShadCN"}}},
		{line: `snip-add brb "be right back"`, want: Request{Verb: "snip-add", Args: []string{"brb", "be right back"}}},
		{line: `snip-add sig "Best,\nSam"`, want: Request{Verb: "snip-add", Args: []string{"sig", "Best,\nSam"}}},
		{line: `style ""`, want: Request{Verb: "style", Args: []string{""}}},
		{line: "", wantErr: true},
		{line: `dict-add "unterminated`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRequest(tt.line)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRequest(%q) should fail", tt.line)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRequest(%q): %v", tt.line, err)
			continue
		}
		if got.Verb != tt.want.Verb || !reflect.DeepEqual(append([]string{}, got.Args...), tt.want.Args) {
			t.Errorf("ParseRequest(%q) = %#v, want %#v", tt.line, got, tt.want)
		}
	}
}

func TestRequestStringParsesBack(t *testing.T) {
	reqs := []Request{
		{Verb: "dict-add", Args: []string{"Kubernetes"}},
		{Verb: "snip-add", Args: []string{"addr", "42 Main St, \"Apt\" 3\nSpringfield"}},
		{Verb: "history", Args: []string{"10"}},
		{Verb: "style", Args: []string{""}},
	}
	for _, req := range reqs {
		line := req.String()
		if strings.Contains(line, "\n") {
			t.Errorf("encoded request spans lines: %q", line)
		}
		got, err := ParseRequest(line)
		if err != nil {
			t.Fatalf("ParseRequest(%q): %v", line, err)
		}
		if got.Verb != req.Verb || !reflect.DeepEqual(got.Args, req.Args) {
			t.Errorf("%q parsed to %#v, want %#v", line, got, req)
		}
	}
}

func TestResponse(t *testing.T) {
	if got := OK("").String(); got != "OK" {
		t.Errorf("empty OK = %q", got)
	}
	if got := Errorf("bad %s", "thing\nhere").String(); got != "ERR bad thing here" {
		t.Errorf("Errorf = %q", got)
	}

	r, err := ParseResponse("OK {\"a\":1}\n")
	if err != nil || !r.OK || r.Body != `{"a":1}` {
		t.Errorf("ParseResponse OK = %+v, %v", r, err)
	}
	r, err = ParseResponse("ERR nope\n")
	if err != nil || r.OK || r.Body != "nope" {
		t.Errorf("ParseResponse ERR = %+v, %v", r, err)
	}
	if _, err := ParseResponse("STATUS idle\n"); err == nil {
		t.Error("unknown prefix should fail")
	}
}

func startServer(t *testing.T, h Handler) *Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), SockName)
	srv := &Server{Path: path, Handler: h}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("server did not stop")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("socket should be removed on shutdown")
		}
	})

	// wait for the socket to appear
	for i := 0; i < 100; i++ {
		if _, err := os.Stat(path); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return &Client{Path: path, Timeout: 2 * time.Second}
}

func TestServerAndClient(t *testing.T) {
	type entry struct {
		Word string `json:"word"`
	}
	c := startServer(t, HandlerFunc(func(_ context.Context, req Request) Response {
		switch req.Verb {
		case VerbVersion:
			return OK("proto=" + ProtoVer)
		case VerbDictList:
			return JSON([]entry{{Word: "ShadCN"}})
		case VerbSnipAdd:
			return OK(strconv.Itoa(len(req.Args)) + ":" + req.Arg(1))
		default:
			return Errorf("unknown command %q", req.Verb)
		}
	}))
	ctx := context.Background()

	body, err := c.Send(ctx, VerbVersion)
	if err != nil || body != "proto="+ProtoVer {
		t.Errorf("version = %q, %v", body, err)
	}

	body, err = c.Send(ctx, VerbSnipAdd, "brb", "be right back")
	if err != nil || body != "2:be right back" {
		t.Errorf("snip-add = %q, %v", body, err)
	}

	var entries []entry
	if err := c.Call(ctx, &entries, VerbDictList); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(entries) != 1 || entries[0].Word != "ShadCN" {
		t.Errorf("entries = %+v", entries)
	}

	_, err = c.Send(ctx, "frobnicate")
	var remote *RemoteError
	if !errors.As(err, &remote) || !strings.Contains(remote.Message, "frobnicate") {
		t.Errorf("unknown verb error = %v", err)
	}
}

func TestClientWithoutDaemon(t *testing.T) {
	c := &Client{Path: filepath.Join(t.TempDir(), SockName), Timeout: time.Second}
	if _, err := c.Send(context.Background(), VerbStatus); !errors.Is(err, ErrDaemonNotRunning) {
		t.Errorf("got %v, want ErrDaemonNotRunning", err)
	}
}

func TestPidFile(t *testing.T) {
	p := &PidFile{Path: filepath.Join(t.TempDir(), PidName)}

	t.Run("no pid file", func(t *testing.T) {
		if err := p.CheckExisting(); err != nil {
			t.Errorf("CheckExisting: %v", err)
		}
	})

	t.Run("create and remove", func(t *testing.T) {
		if err := p.Create(); err != nil {
			t.Fatalf("Create: %v", err)
		}
		data, err := os.ReadFile(p.Path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != strconv.Itoa(os.Getpid()) {
			t.Errorf("pid file = %q", data)
		}

		if err := p.CheckExisting(); err == nil {
			t.Error("running process should be reported")
		}

		if err := p.Remove(); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if err := p.Remove(); err != nil {
			t.Errorf("second Remove should be a no-op: %v", err)
		}
	})

	for name, content := range map[string]string{"stale": "999999", "invalid": "not-a-pid"} {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(p.Path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			if err := p.CheckExisting(); err != nil {
				t.Errorf("CheckExisting: %v", err)
			}
			if _, err := os.Stat(p.Path); !os.IsNotExist(err) {
				t.Error("pid file should be removed")
			}
		})
	}
}

func TestPaths(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	sp, err := SockPath()
	if err != nil {
		t.Fatal(err)
	}
	pp, err := PidPath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(sp) != SockName || filepath.Base(pp) != PidName {
		t.Errorf("paths = %s, %s", sp, pp)
	}
	if filepath.Dir(sp) != filepath.Dir(pp) || filepath.Base(filepath.Dir(sp)) != "holdtype" {
		t.Errorf("socket and pid should share ~/.cache/holdtype: %s %s", sp, pp)
	}
}
