// Package report renders finished test sessions for external consumers.
// The JUnit XML layout follows the common testsuite/testcase schema that CI
// systems ingest.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
)

// JUnitWriter converts sessions to JUnit XML, one testsuite per session and
// one testcase per logged step.
type JUnitWriter struct {
	logger *zap.Logger
}

// NewJUnitWriter builds a writer.
func NewJUnitWriter(logger *zap.Logger) (*JUnitWriter, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &JUnitWriter{logger: logger.Named("junit")}, nil
}

// Render builds the XML document for a batch of sessions.
func (w *JUnitWriter) Render(sessions []*schemas.TestSession) (*etree.Document, error) {
	if len(sessions) == 0 {
		return nil, errors.New("no sessions to render")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("testsuites")

	var totalTests, totalFailures int
	for _, session := range sessions {
		if session == nil {
			continue
		}
		suite := root.CreateElement("testsuite")
		suite.CreateAttr("name", session.Name)
		suite.CreateAttr("timestamp", session.StartedAt.Format("2006-01-02T15:04:05"))
		suite.CreateAttr("time", fmt.Sprintf("%.3f", session.FinishedAt.Sub(session.StartedAt).Seconds()))

		var failures int
		for _, step := range session.Steps {
			tc := suite.CreateElement("testcase")
			tc.CreateAttr("name", step.Description)
			tc.CreateAttr("classname", session.Name)

			switch step.Status {
			case schemas.StepFailed:
				failures++
				failure := tc.CreateElement("failure")
				failure.CreateAttr("message", step.Result)
			case schemas.StepPending:
				skipped := tc.CreateElement("skipped")
				if step.Result != "" {
					skipped.CreateAttr("message", step.Result)
				}
			}
		}

		if len(session.Errors) > 0 {
			out := suite.CreateElement("system-err")
			out.SetText(strings.Join(session.Errors, "\n"))
		}

		suite.CreateAttr("tests", fmt.Sprintf("%d", len(session.Steps)))
		suite.CreateAttr("failures", fmt.Sprintf("%d", failures))
		totalTests += len(session.Steps)
		totalFailures += failures
	}

	root.CreateAttr("tests", fmt.Sprintf("%d", totalTests))
	root.CreateAttr("failures", fmt.Sprintf("%d", totalFailures))
	doc.Indent(2)
	return doc, nil
}

// Write renders the sessions and writes the XML file, creating parent
// directories as needed.
func (w *JUnitWriter) Write(sessions []*schemas.TestSession, path string) error {
	doc, err := w.Render(sessions)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create report directory: %w", err)
		}
	}
	if err := doc.WriteToFile(path); err != nil {
		return fmt.Errorf("could not write JUnit report: %w", err)
	}
	w.logger.Info("JUnit report written.", zap.String("path", path))
	return nil
}
