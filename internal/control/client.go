package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Send connects to the control socket, issues one request, and returns
// the response. Used by the CLI subcommands.
func Send(path string, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	conn, err := net.DialTimeout("unix", path, IOTimeout)
	if err != nil {
		return Response{}, fmt.Errorf("daemon not reachable at %s: %w", path, err)
	}
	defer conn.Close()

	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	payload = append(payload, '\n')

	_ = conn.SetWriteDeadline(time.Now().Add(IOTimeout))
	if _, err := conn.Write(payload); err != nil {
		return Response{}, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(IOTimeout))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, err
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("malformed response: %w", err)
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("%s", resp.Error)
	}
	return resp, nil
}
