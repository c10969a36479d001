package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/signup/internal/form"
	"github.com/yanizio/signup/internal/registration"
)

var testKey = base64.RawURLEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

type recorder struct {
	mu       sync.Mutex
	payloads []registration.Payload
	err      error
}

func (r *recorder) Dispatch(_ context.Context, p registration.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, p)
	return nil
}

// client is a cookie-carrying visitor of a test server.
type client struct {
	t     *testing.T
	base  string
	http  *http.Client
	token string
	body  []byte // raw body of the last do
}

func newTestServer(t *testing.T, d form.Dispatcher, opts Options) *client {
	t.Helper()
	require.NoError(t, form.RegisterDefaults())
	def, ok := form.GetFormDef("registration")
	require.True(t, ok)

	s, err := New(def, d, form.NewCSRF(testKey), opts)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	return newVisitor(t, ts.URL)
}

// newVisitor opens a fresh session against base and fetches its token.
func newVisitor(t *testing.T, base string) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := &client{t: t, base: base, http: &http.Client{Jar: jar}}

	res, snap := c.do(http.MethodGet, "/api/form", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, form.StatusIdle, snap.Status)
	c.token = res.Header.Get("X-CSRF-Token")
	require.NotEmpty(t, c.token)
	return c
}

func (c *client) do(method, path string, body any) (*http.Response, form.Snapshot) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-CSRF-Token", c.token)
	}

	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	c.body = raw

	// Every API answer, errors included, must be JSON the page script can read.
	var snap form.Snapshot
	if strings.HasPrefix(path, "/api/") {
		require.Contains(c.t, res.Header.Get("Content-Type"), "application/json", "%s %s", method, path)
		require.NoError(c.t, json.Unmarshal(raw, &snap), "%s %s: body %q", method, path, raw)
	}
	return res, snap
}

// errorMessage returns the "error" member of the last body.
func (c *client) errorMessage() string {
	c.t.Helper()
	var body map[string]any
	require.NoError(c.t, json.Unmarshal(c.body, &body))
	msg, _ := body["error"].(string)
	return msg
}

func (c *client) edit(field, value string) form.Snapshot {
	c.t.Helper()
	res, snap := c.do(http.MethodPut, "/api/form/fields/"+field, map[string]string{"value": value})
	require.Equal(c.t, http.StatusOK, res.StatusCode)
	return snap
}

func (c *client) editSeq(field, value string, seq uint64) form.Snapshot {
	c.t.Helper()
	res, snap := c.do(http.MethodPut, "/api/form/fields/"+field,
		map[string]any{"value": value, "seq": seq})
	require.Equal(c.t, http.StatusOK, res.StatusCode)
	return snap
}

func (c *client) fillValid() {
	c.edit("nome", "Arthur")
	c.edit("sobrenome", "Takeat")
	c.edit("email", "arthur.takeat@gmail.com")
	c.edit("celular", "11987654321")
}

func TestAPI_SubmitSuccess(t *testing.T) {
	rec := &recorder{}
	c := newTestServer(t, rec, Options{})

	snap := c.edit("celular", "11987654321")
	assert.Equal(t, "(11) 98765-4321", snap.Values["celular"])

	c.fillValid()
	res, snap := c.do(http.MethodPost, "/api/form/submit", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	want := form.Snapshot{
		Values:    map[string]string{"nome": "", "sobrenome": "", "email": "", "celular": ""},
		Errors:    map[string]string{},
		Status:    form.StatusSuccess,
		Message:   "Cadastro realizado com sucesso!",
		CanSubmit: true,
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, rec.payloads, 1)
	assert.Equal(t, registration.Payload{
		Nome: "Arthur", Sobrenome: "Takeat", Email: "arthur.takeat@gmail.com", Celular: "11987654321",
	}, rec.payloads[0])
}

func TestAPI_SubmitInvalid(t *testing.T) {
	rec := &recorder{}
	c := newTestServer(t, rec, Options{})

	c.fillValid()
	c.edit("email", "arthur@gmail.com")

	res, snap := c.do(http.MethodPost, "/api/form/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, form.StatusIdle, snap.Status)
	assert.Equal(t, map[string]string{"email": "O email deve conter .takeat@"}, snap.Errors)
	assert.Empty(t, rec.payloads)
}

func TestAPI_Blur(t *testing.T) {
	c := newTestServer(t, &recorder{}, Options{})
	c.edit("nome", "A")

	res, snap := c.do(http.MethodPost, "/api/form/fields/nome/blur", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Nome deve ter pelo menos 2 caracteres", snap.Errors["nome"])
}

func TestAPI_SubmitInProgress(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	d := form.DispatcherFunc(func(context.Context, registration.Payload) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})
	c := newTestServer(t, d, Options{})
	c.fillValid()

	// Same session, own copy so the two requests don't share c.body.
	other := *c
	first := make(chan int, 1)
	go func() {
		res, _ := other.do(http.MethodPost, "/api/form/submit", nil)
		first <- res.StatusCode
	}()
	<-entered

	res, snap := c.do(http.MethodPost, "/api/form/submit", nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, form.StatusLoading, snap.Status)
	assert.False(t, snap.CanSubmit)

	close(release)
	assert.Equal(t, http.StatusOK, <-first)
}

func TestAPI_SubmitLocalError(t *testing.T) {
	c := newTestServer(t, &recorder{err: errors.New("queue full")}, Options{})
	c.fillValid()

	res, snap := c.do(http.MethodPost, "/api/form/submit", nil)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, form.StatusError, snap.Status)
	assert.Equal(t, form.SubmitErrorMessage, snap.Message)
}

func TestAPI_CSRFAndUnknownField(t *testing.T) {
	c := newTestServer(t, &recorder{}, Options{})

	res, _ := c.do(http.MethodPut, "/api/form/fields/cpf", map[string]string{"value": "1"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	c.token = "forged"
	res, _ = c.do(http.MethodPost, "/api/form/submit", nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestAPI_RateLimit(t *testing.T) {
	c := newTestServer(t, &recorder{}, Options{RateLimit: 0.5, RateBurst: 1})

	res, _ := c.do(http.MethodPost, "/api/form/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res, snap := c.do(http.MethodPost, "/api/form/submit", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "2", res.Header.Get("Retry-After"))
	assert.NotEmpty(t, c.errorMessage())
	assert.Empty(t, snap.Status, "no snapshot in a 429")

	// The form never entered loading, so a fresh read re-enables the button.
	res, snap = c.do(http.MethodGet, "/api/form", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, form.StatusIdle, snap.Status)
	assert.True(t, snap.CanSubmit)

	// Edits are not limited.
	c.edit("nome", "Arthur")
}

func TestAPI_OutOfOrderEditsKeepLatestValue(t *testing.T) {
	rec := &recorder{}
	c := newTestServer(t, rec, Options{})
	c.editSeq("sobrenome", "Takeat", 1)
	c.editSeq("email", "arthur.takeat@gmail.com", 2)
	c.editSeq("celular", "11987654321", 3)

	// "Arthur" (5) overtook "Arthu" (4) on the way to the server.
	snap := c.editSeq("nome", "Arthur", 5)
	assert.Equal(t, "Arthur", snap.Values["nome"])
	snap = c.editSeq("nome", "Arthu", 4)
	assert.Equal(t, "Arthur", snap.Values["nome"], "late edit dropped")
	assert.Equal(t, uint64(5), snap.Seq)

	res, _ := c.do(http.MethodPost, "/api/form/submit", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, rec.payloads, 1)
	assert.Equal(t, "Arthur", rec.payloads[0].Nome)

	// A reloaded page resumes numbering from the rendered data-seq.
	page, err := c.http.Get(c.base + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(page.Body)
	page.Body.Close()
	assert.Contains(t, string(body), `data-seq="5"`)
}

func TestAPI_TokenBoundToSession(t *testing.T) {
	alice := newTestServer(t, &recorder{}, Options{})
	bob := newVisitor(t, alice.base)

	bob.token = alice.token
	res, _ := bob.do(http.MethodPut, "/api/form/fields/nome", map[string]string{"value": "Bob"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	// Without any session cookie the token is useless too.
	anon := &client{t: t, base: alice.base, http: &http.Client{}, token: alice.token}
	res, _ = anon.do(http.MethodPost, "/api/form/submit", nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	snap := alice.edit("nome", "Alice")
	assert.Equal(t, "Alice", snap.Values["nome"])
}

func TestPage_RenderAndPlainPost(t *testing.T) {
	rec := &recorder{}
	c := newTestServer(t, rec, Options{})

	res, err := c.http.Get(c.base + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `<form class="signup-form"`)
	assert.Contains(t, string(body), `<script src="/assets/form.js" defer></script>`)
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))

	vals := url.Values{
		"csrf_token": {c.token},
		"nome":       {"Arthur"},
		"sobrenome":  {"Takeat"},
		"email":      {"arthur.takeat@gmail.com"},
		"celular":    {"(11) 98765-4321"},
	}
	res, err = c.http.PostForm(c.base+"/", vals)
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "Cadastro realizado com sucesso!")
	assert.Len(t, rec.payloads, 1)

	vals.Set("csrf_token", "forged")
	res, err = c.http.PostForm(c.base+"/", vals)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestOps_HealthMetricsAssets(t *testing.T) {
	c := newTestServer(t, &recorder{}, Options{})

	for path, want := range map[string]string{
		"/healthz":         `"ok"`,
		"/metrics":         "signup_active_forms",
		"/assets/form.js":  "/api/form/submit",
		"/assets/form.css": ".signup-form",
	} {
		res, err := c.http.Get(c.base + path)
		require.NoError(t, err, path)
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
		assert.Contains(t, string(body), want, path)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(nil, &recorder{}, form.NewCSRF(testKey), Options{})
	assert.Error(t, err)
}
