package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/service"
)

type step struct {
	Name   string
	Method string
	Path   string
	Body   interface{}
	Expect int
}

type result struct {
	Step     step
	Status   int
	Duration time.Duration
	Err      error
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base      string
		secret    string
		classID   string
		sectionID string
		semester  string
		yearID    string
		teacherID string
		subjectID string
		final     bool
		timeout   time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8090/api/v1", "Console gateway base URL")
	flag.StringVar(&secret, "secret", envOr("JWT_SECRET", "dev_secret"), "JWT signing secret shared with the gateway")
	flag.StringVar(&classID, "class", "", "Class ID")
	flag.StringVar(&sectionID, "section", "", "Section ID")
	flag.StringVar(&semester, "semester", "1", "Semester")
	flag.StringVar(&yearID, "year", envOr("ACTIVE_ACADEMIC_YEAR_ID", ""), "Academic year ID")
	flag.StringVar(&teacherID, "teacher", "", "Teacher ID placed in the first cell")
	flag.StringVar(&subjectID, "subject", "", "Subject ID placed in the first cell")
	flag.BoolVar(&final, "final", false, "Save as final instead of draft")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "HTTP client timeout")
	flag.Parse()

	if classID == "" || sectionID == "" || teacherID == "" || subjectID == "" || yearID == "" {
		log.Fatal("class, section, teacher, subject and year are required")
	}

	token, err := service.NewTokenService(secret, nil).IssueToken(models.UserInfo{
		ID:       "timetable-smoke",
		Email:    "smoke@localhost",
		FullName: "Timetable Smoke",
		Role:     models.RoleAdmin,
	}, yearID, 15*time.Minute)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	base = strings.TrimRight(base, "/")

	start := step{
		Name:   "start",
		Method: http.MethodPost,
		Path:   "/timetable/workflows",
		Expect: http.StatusCreated,
		Body: map[string]interface{}{"configuration": map[string]interface{}{
			"classId": classID, "sectionId": sectionID, "semester": semester,
			"periodDuration": 45, "schoolStartTime": "07:00", "lunchStartTime": "10:00",
			"lunchDuration": 30, "totalPeriods": 7,
		}},
	}
	res, data := run(client, base, token, start)
	report(res)
	if res.Err != nil {
		os.Exit(1)
	}
	var view struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &view); err != nil || view.ID == "" {
		log.Fatalf("start returned no workflow id: %v", err)
	}

	wf := "/timetable/workflows/" + view.ID
	saveStep := step{Name: "save draft", Method: http.MethodPost, Path: wf + "/draft", Expect: http.StatusOK}
	if final {
		saveStep = step{Name: "save final", Method: http.MethodPost, Path: wf + "/final", Expect: http.StatusOK}
	}
	steps := []step{
		{Name: "generate slots", Method: http.MethodPost, Path: wf + "/time-slots", Expect: http.StatusOK},
		{Name: "submit entry", Method: http.MethodPut, Path: wf + "/entries/monday/0", Expect: http.StatusOK,
			Body: map[string]string{"subjectId": subjectID, "teacherId": teacherID, "type": "Regular"}},
		{Name: "validate", Method: http.MethodPost, Path: wf + "/validation", Expect: http.StatusOK},
		{Name: "export csv", Method: http.MethodGet, Path: wf + "/export?format=csv", Expect: http.StatusOK},
		saveStep,
	}

	failed := 0
	for _, s := range steps {
		res, _ := run(client, base, token, s)
		report(res)
		if res.Err != nil {
			failed++
			break
		}
	}

	fmt.Printf("\nSummary: %d/%d steps passed\n", len(steps)+1-failed, len(steps)+1)
	if failed > 0 {
		_, _ = run(client, base, token, step{Name: "close", Method: http.MethodDelete, Path: wf, Expect: http.StatusNoContent})
		os.Exit(1)
	}
}

func run(client *http.Client, base, token string, s step) (result, json.RawMessage) {
	res := result{Step: s}

	var body io.Reader
	if s.Body != nil {
		raw, err := json.Marshal(s.Body)
		if err != nil {
			res.Err = err
			return res, nil
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(s.Method, base+s.Path, body)
	if err != nil {
		res.Err = err
		return res, nil
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(started)
	if err != nil {
		res.Err = err
		return res, nil
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Err = err
		return res, nil
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if resp.StatusCode != s.Expect {
			res.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return res, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		res.Err = fmt.Errorf("decode response: %w", err)
		return res, nil
	}
	if resp.StatusCode != s.Expect {
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if env.Error != nil {
			msg += fmt.Sprintf(" (%s: %s)", env.Error.Code, env.Error.Message)
		}
		res.Err = errors.New(msg)
	}
	return res, env.Data
}

func report(r result) {
	status := "OK"
	if r.Err != nil {
		status = "FAIL: " + r.Err.Error()
	}
	fmt.Printf("%-15s %-6s %-45s %3d %8s  %s\n", r.Step.Name, r.Step.Method, r.Step.Path, r.Status, r.Duration.Round(time.Millisecond), status)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
