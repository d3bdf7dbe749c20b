package cli

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestSimpleProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "Probing")

	progress.Start(4)
	progress.Update(2)
	progress.Finish()

	output := buf.String()
	for _, want := range []string{"Probing:", "(2/4)", "(4/4)", "100%"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestSimpleProgressZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "")

	progress.Start(0)
	progress.Update(0)
	progress.Finish()

	if strings.TrimSpace(buf.String()) != "" {
		t.Errorf("expected no bar for zero total, got %q", buf.String())
	}
}

func TestSimpleProgressError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "Probing")

	progress.Start(3)
	progress.Error(fmt.Errorf("probe of gpt-4o failed"))

	output := buf.String()
	if !strings.Contains(output, "Error: probe of gpt-4o failed") {
		t.Errorf("error output = %q", output)
	}
}

func TestSimpleProgressConcurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "Probing")
	progress.Start(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				progress.Update(int64(start*10 + j))
			}
		}(i)
	}
	wg.Wait()
	progress.Finish()

	if buf.Len() == 0 {
		t.Error("expected some progress output")
	}
}
