//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/results"
	"github.com/stemsi/exstem-runner/internal/runner"
)

const (
	defaultBaseURL = "http://localhost:8090/api/v1"
	questionCount  = 2
)

var (
	baseURL  string
	email    string
	password string
	category string
	runID    string
)

// TestMain expects a running runner pointed at a live quiz API, and an existing
// student account in E2E_EMAIL / E2E_PASSWORD.
func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	email = os.Getenv("E2E_EMAIL")
	password = os.Getenv("E2E_PASSWORD")
	category = os.Getenv("E2E_CATEGORY")
	if email == "" || password == "" {
		fmt.Println("E2E_EMAIL and E2E_PASSWORD must be set")
		os.Exit(1)
	}

	os.Exit(m.Run())
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code     string                 `json:"code"`
		Message  string                 `json:"message"`
		Details  map[string]interface{} `json:"details"`
		Redirect string                 `json:"redirect"`
	} `json:"error"`
}

func TestE2EFlow(t *testing.T) {
	// Step 1: Login
	t.Run("Login", func(t *testing.T) {
		resp, err := post("/auth/login", model.LoginRequest{Email: email, Password: password})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			User model.User `json:"user"`
		}
		decodeData(t, resp, &body)
		if body.User.ID == "" {
			t.Fatal("user missing")
		}
		t.Logf("Logged in as %s", body.User.Email)
	})

	// Step 2: Wrong password keeps the server message and does not redirect
	t.Run("LoginRejected", func(t *testing.T) {
		resp, err := post("/auth/login", model.LoginRequest{Email: email, Password: password + "x"})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("Expected 401, got %d: %s", resp.StatusCode, readBody(resp))
		}
		var env envelope
		decodeJSON(t, resp, &env)
		if env.Error == nil || env.Error.Code != "INVALID_CREDENTIALS" || env.Error.Redirect != "" {
			t.Fatalf("unexpected error %+v", env.Error)
		}
	})

	// The rejected attempt must not have logged us out.
	t.Run("StillLoggedIn", func(t *testing.T) {
		resp, err := get("/auth/me")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 3: Catalog and pool preview
	t.Run("Preview", func(t *testing.T) {
		resp, err := post("/tests/preview", model.Criteria{Category: category})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Pool model.QuestionPool `json:"pool"`
		}
		decodeData(t, resp, &body)
		if body.Pool.Total < questionCount {
			t.Fatalf("need at least %d questions, pool has %d", questionCount, body.Pool.Total)
		}
	})

	// Step 4: Start a run
	t.Run("Start", func(t *testing.T) {
		resp, err := post("/tests", map[string]interface{}{
			"criteria": model.Criteria{Category: category},
			"count":    questionCount,
		})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Run runner.View `json:"run"`
		}
		decodeData(t, resp, &body)
		runID = body.Run.TestSessionID
		if runID == "" || body.Run.State != runner.StateRunning {
			t.Fatalf("unexpected run %+v", body.Run)
		}
		t.Logf("Run %s started with %d questions", runID, body.Run.Total)
	})

	// Step 5: Answer the first question
	t.Run("AnswerFirst", func(t *testing.T) {
		for _, step := range []struct {
			path string
			body interface{}
		}{
			{"/select", map[string]int{"option": 0}},
			{"/submit", nil},
		} {
			resp, err := post("/runs/"+runID+step.path, step.body)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("%s status %d: %s", step.path, resp.StatusCode, readBody(resp))
			}
			resp.Body.Close()
		}
	})

	// Step 6: Ending with a question unanswered asks first
	t.Run("EndAsks", func(t *testing.T) {
		resp, err := post("/runs/"+runID+"/end", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("Expected 409, got %d: %s", resp.StatusCode, readBody(resp))
		}
		var env envelope
		decodeJSON(t, resp, &env)
		if env.Error == nil || env.Error.Code != "DECISION_REQUIRED" {
			t.Fatalf("unexpected error %+v", env.Error)
		}
	})

	// Step 7: Fill the rest as skipped
	t.Run("EndFill", func(t *testing.T) {
		resp, err := post("/runs/"+runID+"/end", map[string]string{"mode": "fill_unanswered"})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Result results.Summary `json:"result"`
		}
		decodeData(t, resp, &body)
		if body.Result.Skipped != questionCount-1 {
			t.Errorf("Expected %d skipped, got %d", questionCount-1, body.Result.Skipped)
		}
	})

	// Step 8: The result shows up in history
	t.Run("History", func(t *testing.T) {
		resp, err := get("/results")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Results []results.Entry `json:"results"`
		}
		decodeData(t, resp, &body)
		for _, e := range body.Results {
			if e.TestSessionID == runID {
				return
			}
		}
		t.Fatalf("run %s missing from history", runID)
	})

	// Step 9: Logout
	t.Run("Logout", func(t *testing.T) {
		resp, err := post("/auth/logout", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		after, err := get("/results")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer after.Body.Close()
		if after.StatusCode != http.StatusUnauthorized {
			t.Fatalf("Expected 401 after logout, got %d", after.StatusCode)
		}
	})
}

func post(path string, body interface{}) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return http.DefaultClient.Do(req)
}

func get(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// decodeData unwraps the response envelope into v.
func decodeData(t *testing.T, resp *http.Response, v interface{}) {
	var env envelope
	decodeJSON(t, resp, &env)
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}
