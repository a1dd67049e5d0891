//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const repoRootRel = ".."   // relative to ./e2e
const mainPkgRel = "./cmd" // main.go lives in cmd/

const (
	authURL       = "http://auth.invalid/oauth2/authorization/auth0"
	sessionCookie = "JSESSIONID"
	sessionValue  = "e2e-session"
	topicPrefix   = "weatherportal-e2e"
)

type server struct {
	cmd  *exec.Cmd
	base string
}

func TestSmoke_WeatherView(t *testing.T) {
	repoRoot := repoRootPath(t)
	brokerHost, brokerPort := startMosquitto(t)
	backend := startBackend(t)
	events := subscribeEvents(t, brokerHost, brokerPort)

	srv := startServer(t, repoRoot,
		"BACKEND_URL="+backend.URL,
		"SESSION_COOKIES="+sessionCookie,
		"MQTT_BROKER="+brokerHost,
		"MQTT_PORT="+brokerPort,
		"MQTT_TOPIC_PREFIX="+topicPrefix,
	)

	noFollow := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	t.Run("healthz reports broker", func(t *testing.T) {
		deadline := time.Now().Add(10 * time.Second)
		for {
			body := getHealth(t, noFollow, srv.base)
			if body["status"] != "ok" {
				t.Fatalf("status=%v want=ok", body["status"])
			}
			if body["mqtt"] == "connected" {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("mqtt=%v want=connected", body["mqtt"])
			}
			time.Sleep(200 * time.Millisecond)
		}
	})

	t.Run("root redirects to login", func(t *testing.T) {
		resp, err := noFollow.Get(srv.base + "/")
		if err != nil {
			t.Fatalf("GET /: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != authURL {
			t.Fatalf("got %d Location=%q; want 302 to %q", resp.StatusCode, resp.Header.Get("Location"), authURL)
		}
	})

	t.Run("signed-in visitor sees cards", func(t *testing.T) {
		client := newBrowser(t, srv.base, true)
		mustGet(t, client, srv.base+"/weather")

		body := htmxGet(t, client, srv.base+"/weather/panel")
		for _, want := range []string{"London", "12°C", "🌧️"} {
			if !strings.Contains(body, want) {
				t.Errorf("panel missing %q; got %q", want, body)
			}
		}

		select {
		case payload := <-events:
			var ev map[string]any
			if err := json.Unmarshal(payload, &ev); err != nil {
				t.Fatalf("event payload: %v", err)
			}
			if ev["state"] != "ready" || ev["status"] != float64(200) {
				t.Errorf("event = %v; want ready/200", ev)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("no view event published")
		}
	})

	t.Run("missing session redirects to login", func(t *testing.T) {
		client := newBrowser(t, srv.base, false)
		mustGet(t, client, srv.base+"/weather")

		req, _ := http.NewRequest(http.MethodGet, srv.base+"/weather/panel", nil)
		req.Header.Set("HX-Request", "true")
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("GET /weather/panel: %v", err)
		}
		resp.Body.Close()
		if got := resp.Header.Get("HX-Redirect"); got != authURL {
			t.Fatalf("HX-Redirect=%q want=%q", got, authURL)
		}
	})

	stopServer(t, srv.cmd)
}

func TestSmoke_BackendDown(t *testing.T) {
	repoRoot := repoRootPath(t)
	srv := startServer(t, repoRoot, "BACKEND_URL=http://"+pickFreeAddr(t))

	client := newBrowser(t, srv.base, true)
	mustGet(t, client, srv.base+"/weather")
	body := htmxGet(t, client, srv.base+"/weather/panel")
	if !strings.Contains(body, "Weather service is unreachable") {
		t.Fatalf("panel=%q want unavailable message", body)
	}

	stopServer(t, srv.cmd)
}

func startServer(t *testing.T, repoRoot string, env ...string) server {
	t.Helper()

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=info",
		"HTTP_ADDR="+addr,
		"AUTH_URL="+authURL,
		"DOTENV_PATH="+filepath.Join(t.TempDir(), "none.env"),
	)
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	base := "http://" + addr
	waitForOK(t, &http.Client{Timeout: 2 * time.Second}, base+"/healthz", 10*time.Second)
	return server{cmd: cmd, base: base}
}

// startBackend serves GET /weather the way the session-protected API does.
func startBackend(t *testing.T) *httptest.Server {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/weather" {
			http.NotFound(w, r)
			return
		}
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value != sessionValue {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"name":"London","description":"light rain","temp":12}]`)
	}))
	t.Cleanup(backend.Close)
	return backend
}

func startMosquitto(t *testing.T) (host, port string) {
	t.Helper()

	confDir := t.TempDir()
	conf := "listener 1883\nallow_anonymous true\n"
	if err := os.WriteFile(filepath.Join(confDir, "mosquitto.conf"), []byte(conf), 0o644); err != nil {
		t.Fatalf("write mosquitto.conf: %v", err)
	}

	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2",
		ExposedPorts: []string{"1883/tcp"},
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Binds = append(hc.Binds, confDir+":/mosquitto/config:ro")
		},
		WaitingFor: wait.ForListeningPort("1883/tcp").WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err = c.Host(ctx)
	if err != nil {
		t.Fatalf("mosquitto host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "1883/tcp")
	if err != nil {
		t.Fatalf("mosquitto port: %v", err)
	}
	return host, mapped.Port()
}

func subscribeEvents(t *testing.T, host, port string) <-chan []byte {
	t.Helper()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%s", host, port))
	opts.SetClientID("e2e-listener")
	client := mqtt.NewClient(opts)

	if token := client.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		t.Fatalf("mqtt connect: %v", token.Error())
	}
	t.Cleanup(func() { client.Disconnect(250) })

	events := make(chan []byte, 16)
	token := client.Subscribe(topicPrefix+"/views/+/events", 1, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case events <- msg.Payload():
		default:
		}
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("mqtt subscribe: %v", token.Error())
	}
	return events
}

// newBrowser returns a client with a cookie jar, optionally holding the
// backend session cookie.
func newBrowser(t *testing.T, base string, signedIn bool) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	if signedIn {
		u, _ := url.Parse(base)
		jar.SetCookies(u, []*http.Cookie{{Name: sessionCookie, Value: sessionValue, Path: "/"}})
	}
	return &http.Client{
		Jar:     jar,
		Timeout: 15 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func mustGet(t *testing.T, client *http.Client, url string) {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status=%d want=%d", url, resp.StatusCode, http.StatusOK)
	}
}

func htmxGet(t *testing.T, client *http.Client, url string) string {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("HX-Request", "true")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func getHealth(t *testing.T, client *http.Client, base string) map[string]any {
	t.Helper()

	resp, err := client.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return body
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	tmp := t.TempDir()
	out := filepath.Join(tmp, "weatherportal-web")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}
