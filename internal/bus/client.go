package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

type Client struct {
	Path    string
	Timeout time.Duration
}

// NewClient talks to the daemon at the default socket path.
func NewClient() (*Client, error) {
	sp, err := SockPath()
	if err != nil {
		return nil, err
	}
	return &Client{Path: sp, Timeout: 10 * time.Second}, nil
}

// Send issues one request and returns the OK body. An ERR reply is
// returned as *RemoteError.
func (c *Client) Send(ctx context.Context, verb string, args ...string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return "", ErrDaemonNotRunning
		}
		return "", err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := Request{Verb: verb, Args: args}
	if _, err := fmt.Fprintf(conn, "%s\n", req); err != nil {
		return "", err
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	resp, err := ParseResponse(line)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", &RemoteError{Message: resp.Body}
	}
	return resp.Body, nil
}

// Call is Send with the body decoded as JSON into v.
func (c *Client) Call(ctx context.Context, v any, verb string, args ...string) error {
	body, err := c.Send(ctx, verb, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("decode %s response: %w", verb, err)
	}
	return nil
}

// JSON builds an OK response carrying v.
func JSON(v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return Errorf("encode response: %v", err)
	}
	return OK(string(data))
}
