package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

// Exchange dumping mirrors the pipeline's audit requirement: when enabled, the
// full prompt and raw response of every stage call go to a dedicated writer so
// a misbehaving model can be replayed offline.

var (
	exchMu   sync.Mutex
	exchLog  *log.Logger
	exchDump bool
)

func SetExchangeWriter(w io.Writer) {
	exchMu.Lock()
	defer exchMu.Unlock()
	if w == nil {
		exchLog = nil
		return
	}
	exchLog = log.New(w, "", log.LstdFlags)
}

func EnableExchangeDump(enabled bool) {
	exchMu.Lock()
	exchDump = enabled
	exchMu.Unlock()
}

type exchangeSection struct {
	Title string
	Body  string
}

func logExchange(stage, provider string, sections []exchangeSection) {
	exchMu.Lock()
	lg := exchLog
	enabled := exchDump
	exchMu.Unlock()
	if lg == nil || !enabled {
		return
	}
	var b strings.Builder
	b.WriteString("[STAGE]")
	if stage != "" {
		b.WriteString("[")
		b.WriteString(stage)
		b.WriteString("]")
	}
	if provider != "" {
		b.WriteString("[")
		b.WriteString(provider)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(t)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	lg.Print(b.String())
}

func LogStageRequest(stage, provider, systemPrompt, userPrompt string, imageCount int) {
	sections := []exchangeSection{
		{Title: "SYSTEM", Body: systemPrompt},
		{Title: "USER", Body: userPrompt},
	}
	if imageCount > 0 {
		sections = append(sections, exchangeSection{Title: "IMAGES", Body: strings.Repeat("<binary image payload>\n", imageCount)})
	}
	logExchange(stage, provider, sections)
}

func LogStageResponse(stage, provider, raw string) {
	logExchange(stage, provider, []exchangeSection{{Title: "RESPONSE", Body: raw}})
}
