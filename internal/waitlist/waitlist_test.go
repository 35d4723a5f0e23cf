package waitlist

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSheet struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

func (f *fakeSheet) AppendRow(_ context.Context, row []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

var allOn = Options{AcceptJSON: true, AcceptForm: true, EmitCORS: true}

func newServer(sheet *fakeSheet, opts Options) *echo.Echo {
	e := echo.New()
	h := New(sheet, opts)
	h.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600)) }
	h.Register(e)
	return e
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func formRequest(vals url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(vals.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}

func multipartRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		req      func(t *testing.T) *http.Request
		sheetErr error
		wantCode int
		wantBody string
		wantRows [][]string
	}{
		{
			name:     "json with timestamp",
			opts:     allOn,
			req:      func(*testing.T) *http.Request { return jsonRequest(`{"email":"a@b.edu","timestamp":"2026-01-01T00:00:00Z"}`) },
			wantCode: http.StatusOK,
			wantBody: `{"result":"success"}`,
			wantRows: [][]string{{"2026-01-01T00:00:00Z", "a@b.edu"}},
		},
		{
			name:     "json without timestamp defaults to now in UTC",
			opts:     allOn,
			req:      func(*testing.T) *http.Request { return jsonRequest(`{"email":" a@b.edu "}`) },
			wantCode: http.StatusOK,
			wantBody: `{"result":"success"}`,
			wantRows: [][]string{{"2026-03-04T04:06:07Z", "a@b.edu"}},
		},
		{
			name: "urlencoded form",
			opts: allOn,
			req: func(*testing.T) *http.Request {
				return formRequest(url.Values{"email": {"f@b.edu"}, "timestamp": {"t1"}})
			},
			wantCode: http.StatusOK,
			wantBody: `{"result":"success"}`,
			wantRows: [][]string{{"t1", "f@b.edu"}},
		},
		{
			name:     "multipart form",
			opts:     allOn,
			req:      func(t *testing.T) *http.Request { return multipartRequest(t, map[string]string{"email": "m@b.edu"}) },
			wantCode: http.StatusOK,
			wantBody: `{"result":"success"}`,
			wantRows: [][]string{{"2026-03-04T04:06:07Z", "m@b.edu"}},
		},
		{
			name: "empty body falls back to query",
			opts: allOn,
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/?email=q@b.edu&timestamp=t2", nil)
			},
			wantCode: http.StatusOK,
			wantBody: `{"result":"success"}`,
			wantRows: [][]string{{"t2", "q@b.edu"}},
		},
		{
			name: "empty body without form support",
			opts: Options{AcceptJSON: true},
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/?email=q@b.edu", nil)
			},
			wantCode: http.StatusBadRequest,
			wantBody: `{"result":"error","error":"No data received"}`,
		},
		{
			name:     "missing email",
			opts:     allOn,
			req:      func(*testing.T) *http.Request { return jsonRequest(`{"timestamp":"t"}`) },
			wantCode: http.StatusBadRequest,
			wantBody: `{"result":"error","error":"Email is required"}`,
		},
		{
			name:     "malformed json",
			opts:     allOn,
			req:      func(*testing.T) *http.Request { return jsonRequest(`{"email":`) },
			wantCode: http.StatusBadRequest,
			wantBody: `{"result":"error","error":"invalid JSON body"}`,
		},
		{
			name:     "form rejected when disabled",
			opts:     Options{AcceptJSON: true},
			req:      func(*testing.T) *http.Request { return formRequest(url.Values{"email": {"f@b.edu"}}) },
			wantCode: http.StatusUnsupportedMediaType,
			wantBody: `{"result":"error","error":"unsupported content type"}`,
		},
		{
			name:     "json rejected when disabled",
			opts:     Options{AcceptForm: true},
			req:      func(*testing.T) *http.Request { return jsonRequest(`{"email":"a@b.edu"}`) },
			wantCode: http.StatusBadRequest,
			wantBody: `{"result":"error","error":"Email is required"}`,
		},
		{
			name:     "sheet failure",
			opts:     allOn,
			req:      func(*testing.T) *http.Request { return jsonRequest(`{"email":"a@b.edu"}`) },
			sheetErr: errors.New("quota exceeded"),
			wantCode: http.StatusBadGateway,
			wantBody: `{"result":"error","error":"quota exceeded"}`,
		},
		{
			name:     "plain text success",
			opts:     Options{AcceptJSON: true, PlainText: true},
			req:      func(*testing.T) *http.Request { return jsonRequest(`{"email":"a@b.edu","timestamp":"t"}`) },
			wantCode: http.StatusOK,
			wantBody: "Success",
			wantRows: [][]string{{"t", "a@b.edu"}},
		},
		{
			name:     "plain text missing email",
			opts:     Options{AcceptJSON: true, PlainText: true},
			req:      func(*testing.T) *http.Request { return jsonRequest(`{}`) },
			wantCode: http.StatusBadRequest,
			wantBody: "Email is required",
		},
		{
			name:     "plain text sheet failure",
			opts:     Options{AcceptJSON: true, PlainText: true},
			req:      func(*testing.T) *http.Request { return jsonRequest(`{"email":"a@b.edu"}`) },
			sheetErr: errors.New("boom"),
			wantCode: http.StatusBadGateway,
			wantBody: "Error: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := &fakeSheet{err: tt.sheetErr}
			rec := do(newServer(sheet, tt.opts), tt.req(t))
			assert.Equal(t, tt.wantCode, rec.Code)
			if strings.HasPrefix(tt.wantBody, "{") {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			assert.Equal(t, tt.wantRows, sheet.rows)
		})
	}
}

func TestSubmit_DuplicatesAppendTwice(t *testing.T) {
	sheet := &fakeSheet{}
	e := newServer(sheet, allOn)
	for i := 0; i < 2; i++ {
		rec := do(e, jsonRequest(`{"email":"dup@b.edu","timestamp":"t"}`))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, sheet.rows, 2)
}

func TestStatusAndPreflight(t *testing.T) {
	e := newServer(&fakeSheet{}, allOn)

	rec := do(e, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RunningText, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMETextPlain))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set(echo.HeaderOrigin, "https://leaselink.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec = do(e, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)

	noCORS := newServer(&fakeSheet{}, Options{AcceptJSON: true})
	rec = do(noCORS, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
