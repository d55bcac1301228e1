package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
	"github.com/google/uuid"
)

// RequestIDHeader tags every request so a replay can be matched to the
// request it repeats in server logs.
const RequestIDHeader = "X-Request-Id"

// errorBodyLimit bounds how much of a 401 body is read to find its code.
const errorBodyLimit = 64 << 10

// Transport is an http.RoundTripper that authorizes requests with the
// coordinator's access token and recovers from access-token expiry.
//
// A 401 with code token.expired queues the request behind a single refresh
// and replays it once with the new token. Any other 401 signs the user out
// and is returned unchanged. Other responses pass through.
type Transport struct {
	base    http.RoundTripper
	coord   *Coordinator
	signOut func(ctx context.Context) error
	log     *logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	getBody, err := rewindable(req)
	if err != nil {
		return nil, err
	}

	out := req.Clone(req.Context())
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}
	sent := bearerToken(out.Header.Get("Authorization"))
	if sent == "" {
		sent = t.coord.Token()
		if sent != "" {
			out.Header.Set("Authorization", tokens.Bearer(sent))
		}
	}
	if out.Body, err = openBody(getBody); err != nil {
		return nil, err
	}
	out.GetBody = getBody

	res, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusUnauthorized {
		return res, nil
	}

	code, err := peekErrorCode(res)
	if err != nil {
		res.Body.Close()
		return nil, err
	}
	if code != CodeTokenExpired {
		t.unauthorized(out, code)
		return res, nil
	}
	res.Body.Close()

	t.log.debugf("transport: %s %s (%s) expired, waiting on refresh\n",
		out.Method, out.URL.Path, out.Header.Get(RequestIDHeader))

	// the replay runs as the queued continuation so replays leave in the
	// order their requests expired
	type replayed struct {
		res *http.Response
		err error
	}
	done := make(chan replayed, 1)
	t.coord.Enqueue(req.Context(), sent, func(access string, err error) {
		if err != nil {
			done <- replayed{nil, err}
			return
		}
		res, err := t.replay(out, getBody, access)
		done <- replayed{res, err}
	})
	r := <-done
	return r.res, r.err
}

// replay sends out again with access. Replays are not retried again; a
// second expiry goes back to the caller.
func (t *Transport) replay(
	out *http.Request,
	getBody func() (io.ReadCloser, error),
	access string,
) (*http.Response, error) {
	replay := out.Clone(out.Context())
	replay.Header.Set("Authorization", tokens.Bearer(access))
	var err error
	if replay.Body, err = openBody(getBody); err != nil {
		return nil, err
	}
	t.log.debugf("transport: replaying %s %s (%s)\n",
		replay.Method, replay.URL.Path, replay.Header.Get(RequestIDHeader))

	res, err := t.base.RoundTrip(replay)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusUnauthorized {
		code, err := peekErrorCode(res)
		if err != nil {
			res.Body.Close()
			return nil, err
		}
		if code != CodeTokenExpired {
			t.unauthorized(replay, code)
		}
	}
	return res, nil
}

func (t *Transport) unauthorized(req *http.Request, code string) {
	t.log.infof("transport: %s %s unauthorized (code=%q), signing out\n", req.Method, req.URL.Path, code)
	if err := t.signOut(context.WithoutCancel(req.Context())); err != nil {
		t.log.errorf("transport: sign out failed: %v\n", err)
	}
}

// rewindable returns a function yielding a fresh copy of the request body,
// buffering the body when the request cannot produce one itself.
func rewindable(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		req.Body.Close()
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func openBody(getBody func() (io.ReadCloser, error)) (io.ReadCloser, error) {
	if getBody == nil {
		return http.NoBody, nil
	}
	body, err := getBody()
	if err != nil {
		return nil, fmt.Errorf("failed to reopen request body: %w", err)
	}
	return body, nil
}

// peekErrorCode reads the code of a 401 body and restores the body so the
// caller still sees the full response.
func peekErrorCode(res *http.Response) (string, error) {
	data, err := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
	if err != nil {
		return "", fmt.Errorf("failed to read error response: %w", err)
	}
	rest := res.Body
	res.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(data), rest), rest}
	return parseErrorBody(data).Code, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return header[len(prefix):]
}
