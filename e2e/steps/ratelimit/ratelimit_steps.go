package ratelimit

import (
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Reset(rateLimit int)
	POST(path string, body string) error
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers rate-limiting step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^a contactgraph deployment allowing (\d+) requests? per minute$`, steps.deploymentWithLimit)
	ctx.Step(`^I send (\d+) identify requests?$`, steps.sendIdentifyRequests)
	ctx.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, steps.headerShouldBe)
}

type ratelimitSteps struct {
	tc TestContext
}

func (s *ratelimitSteps) deploymentWithLimit(limit int) error {
	s.tc.Reset(limit)
	return nil
}

func (s *ratelimitSteps) sendIdentifyRequests(n int) error {
	for range n {
		if err := s.tc.POST("/identify", `{"email":"quota@hillvalley.edu"}`); err != nil {
			return err
		}
	}
	return nil
}

func (s *ratelimitSteps) headerShouldBe(name, want string) error {
	if got := s.tc.GetLastResponseHeader(name); got != want {
		return fmt.Errorf("expected header %s=%q, got %q", name, want, got)
	}
	return nil
}
