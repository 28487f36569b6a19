// Command e2e_test drives a running server through every endpoint.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	baseURL = flag.String("base", "http://localhost:8080", "server address")
	asset   = flag.String("asset", "bitcoin", "asset to buy")
	log     = logrus.New()
)

func main() {
	flag.Parse()
	// Wait for server to start
	time.Sleep(2 * time.Second)

	checkEndpoint("GET", "/health", nil, http.StatusOK)
	checkEndpoint("GET", "/price?crypto="+*asset, nil, http.StatusOK)
	checkEndpoint("GET", "/price?crypto=not-a-real-coin-e2e", nil, http.StatusNotFound)

	before := holding()
	res := checkEndpoint("POST", "/buy", map[string]any{"crypto": *asset, "quantity": 0.01}, http.StatusOK)
	log.Infof("bought %v %s at %v", res["quantity"], *asset, res["unit_price"])

	after := holding()
	if after == before {
		log.Fatalf("holding of %s did not change (%s)", *asset, after)
	}

	checkEndpoint("POST", "/buy", map[string]any{"crypto": *asset, "quantity": -1}, http.StatusBadRequest)
	checkEndpoint("POST", "/buy", map[string]any{"crypto": "not-a-real-coin-e2e", "quantity": 1}, http.StatusBadRequest)

	checkEndpoint("POST", "/snapshot", map[string]any{"ids": []string{*asset}}, http.StatusOK)
	checkEndpoint("GET", "/history", nil, http.StatusOK)
	checkEndpoint("GET", "/portfolio", nil, http.StatusOK)

	log.Info("ALL TESTS PASSED")
}

func holding() string {
	res := checkEndpoint("GET", "/api/portfolio", nil, http.StatusOK)
	lines, _ := res["lines"].([]any)
	for _, l := range lines {
		line, _ := l.(map[string]any)
		if line["asset_id"] == *asset {
			s, _ := line["quantity"].(string)
			return s
		}
	}
	return "0"
}

func checkEndpoint(method, path string, body any, expectedStatus int) map[string]any {
	reqID := uuid.NewString()
	log.Infof("testing %s %s (request %s)", method, path, reqID)

	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, *baseURL+path, bodyReader)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, respBody)
	}
	log.Debugf("response: %s", respBody)

	var res map[string]any
	_ = json.Unmarshal(respBody, &res)
	return res
}
