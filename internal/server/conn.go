package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// maxContentLength bounds a single message body.
const maxContentLength = 64 << 20

// Message is any JSON-RPC 2.0 message: request, notification or response.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsRequest reports whether the message expects a response.
func (m *Message) IsRequest() bool {
	return len(m.ID) > 0 && string(m.ID) != "null" && m.Method != ""
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *RPCError       `json:"error"`
}

// Conn reads and writes Content-Length framed JSON-RPC messages.
type Conn struct {
	reader *bufio.Reader
	writer io.Writer

	mu     sync.Mutex
	closed atomic.Bool
}

// NewConn creates a connection over r and w.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{
		reader: bufio.NewReaderSize(r, 64*1024),
		writer: w,
	}
}

// Close stops further writes. It does not close the underlying streams.
func (c *Conn) Close() {
	c.closed.Store(true)
}

// Read returns the next message. A body that is not valid JSON yields an
// *RPCError with CodeParseError; the stream stays usable.
func (c *Conn) Read() (*Message, error) {
	body, err := c.readFrame()
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &RPCError{Code: CodeParseError, Message: err.Error()}
	}
	return &msg, nil
}

// readFrame reads a single Content-Length framed body.
func (c *Conn) readFrame() ([]byte, error) {
	contentLength := -1
	headers := 0
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && line != "" {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if headers == 0 {
				// Tolerate blank lines between messages.
				continue
			}
			break
		}
		headers++
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			length, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || length < 0 {
				return nil, fmt.Errorf("invalid Content-Length %q", value)
			}
			contentLength = length
		}
		// Ignore Content-Type and other headers
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	if contentLength > maxContentLength {
		return nil, fmt.Errorf("message of %d bytes exceeds limit", contentLength)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Reply answers the request with id.
func (c *Conn) Reply(id json.RawMessage, result any) error {
	return c.write(&response{JSONRPC: "2.0", ID: nullID(id), Result: result})
}

// ReplyError answers the request with id with an error.
func (c *Conn) ReplyError(id json.RawMessage, rpcErr *RPCError) error {
	return c.write(&errorResponse{JSONRPC: "2.0", ID: nullID(id), Error: rpcErr})
}

// Notify sends a notification.
func (c *Conn) Notify(method string, params any) error {
	return c.write(&notification{JSONRPC: "2.0", Method: method, Params: params})
}

// Call sends a request. Responses arrive through Read; the server never
// waits on them, this exists for host-side tooling and tests.
func (c *Conn) Call(id int64, method string, params any) error {
	return c.write(&struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int64  `json:"id"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{"2.0", id, method, params})
}

func (c *Conn) write(msg any) error {
	if c.closed.Load() {
		return ErrClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

func nullID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
