package identify

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body string) error
	GetResponseField(field string) (any, error)
	GetLastResponseBody() []byte
}

// RegisterSteps registers identity reconciliation step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &identifySteps{tc: tc}

	ctx.Step(`^I identify with email "([^"]*)" and phone "([^"]*)"$`, steps.identifyWithEmailAndPhone)
	ctx.Step(`^I identify with email "([^"]*)"$`, steps.identifyWithEmail)
	ctx.Step(`^I identify with phone "([^"]*)"$`, steps.identifyWithPhone)
	ctx.Step(`^I identify with body:$`, steps.identifyWithBody)

	ctx.Step(`^the primary contact id should be (\d+)$`, steps.primaryContactIDShouldBe)
	ctx.Step(`^the emails should be "([^"]*)"$`, steps.stringListShouldBe("emails"))
	ctx.Step(`^the phone numbers should be "([^"]*)"$`, steps.stringListShouldBe("phoneNumbers"))
	ctx.Step(`^the secondary contact ids should be "([^"]*)"$`, steps.secondaryIDsShouldBe)
	ctx.Step(`^the error should be "([^"]*)"$`, steps.errorShouldBe)
}

type identifySteps struct {
	tc TestContext
}

func (s *identifySteps) identify(payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.tc.POST("/identify", string(body))
}

func (s *identifySteps) identifyWithEmailAndPhone(email, phone string) error {
	return s.identify(map[string]string{"email": email, "phoneNumber": phone})
}

func (s *identifySteps) identifyWithEmail(email string) error {
	return s.identify(map[string]string{"email": email})
}

func (s *identifySteps) identifyWithPhone(phone string) error {
	return s.identify(map[string]string{"phoneNumber": phone})
}

func (s *identifySteps) identifyWithBody(body *godog.DocString) error {
	return s.tc.POST("/identify", body.Content)
}

func (s *identifySteps) primaryContactIDShouldBe(want int) error {
	v, err := s.tc.GetResponseField("primaryContactId")
	if err != nil {
		return err
	}
	if got, ok := v.(float64); !ok || int(got) != want {
		return fmt.Errorf("expected primaryContactId %d, got %v", want, v)
	}
	return nil
}

func (s *identifySteps) stringListShouldBe(field string) func(want string) error {
	return func(want string) error {
		v, err := s.tc.GetResponseField(field)
		if err != nil {
			return err
		}
		got := toStrings(v)
		if !slices.Equal(got, splitList(want)) {
			return fmt.Errorf("expected %s %q, got %q", field, splitList(want), got)
		}
		return nil
	}
}

func (s *identifySteps) secondaryIDsShouldBe(want string) error {
	v, err := s.tc.GetResponseField("secondaryContactIds")
	if err != nil {
		return err
	}
	items, _ := v.([]any)
	got := make([]string, 0, len(items))
	for _, item := range items {
		n, _ := item.(float64)
		got = append(got, strconv.Itoa(int(n)))
	}
	if !slices.Equal(got, splitList(want)) {
		return fmt.Errorf("expected secondaryContactIds %q, got %q", splitList(want), got)
	}
	return nil
}

func (s *identifySteps) errorShouldBe(code string) error {
	v, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if v != code {
		return fmt.Errorf("expected error %q, got %v", code, v)
	}
	return nil
}

func toStrings(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

// splitList parses "a, b" into ["a" "b"]; an empty string is an empty list.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
