package bus

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

type HandlerFunc func(ctx context.Context, req Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response { return f(ctx, req) }

// Server answers one request per connection on a unix socket.
type Server struct {
	Path        string
	Handler     Handler
	ReadTimeout time.Duration
}

func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(path) // stale socket from last run
	return net.Listen("unix", path)
}

// Serve blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := Listen(s.Path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Path, err)
	}
	defer os.Remove(s.Path)

	// Close the listener when context is done
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Printf("Bus: listening on %s", s.Path)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("Bus: accept error: %v", err)
			return fmt.Errorf("accept failed: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, c)
		}()
	}
}

func (s *Server) handle(ctx context.Context, c net.Conn) {
	defer c.Close()

	timeout := s.ReadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	_ = c.SetReadDeadline(time.Now().Add(timeout))

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Printf("Bus: client read error: %v", err)
		fmt.Fprintf(c, "%s\n", Errorf("read_error: %v", err))
		return
	}

	req, err := ParseRequest(line)
	if err != nil {
		fmt.Fprintf(c, "%s\n", Errorf("%v", err))
		return
	}

	resp := s.Handler.Handle(ctx, req)
	fmt.Fprintf(c, "%s\n", resp)
}
