package chunking

import (
	"testing"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

func TestDetectCascadePriority(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		text     string
		want     domain.DocumentType
	}{
		{"code extension wins", "main.go", "Step 1: compile", domain.DocTypeCode},
		{"markdown extension", "notes.md", "plain prose", domain.DocTypeMarkdown},
		{"code fences imply markdown", "snippet.txt", "intro\n```go\nfunc f(){}\n```\nmore\n```\nx\n```", domain.DocTypeMarkdown},
		{"manual step markers", "guide.txt", "Step 1: unplug the device.\nStep 2: wait.", domain.DocTypeManual},
		{"manual keyword", "doc.txt", "This user manual covers the basics.", domain.DocTypeManual},
		{"technical numbering", "doc.txt", "1.2 Overview\nThe system boots.", domain.DocTypeTechnical},
		{"technical keyword", "doc.txt", "The API reference lists endpoints.", domain.DocTypeTechnical},
		{"academic headers", "paper.txt", "Abstract\nWe study retrieval.", domain.DocTypeAcademic},
		{"academic keyword", "paper.txt", "In this paper we propose a method.", domain.DocTypeAcademic},
		{"default general", "letter.txt", "Dear reader, hello.", domain.DocTypeGeneral},
	}

	for _, tc := range cases {
		if got := DetectDocumentType(tc.filename, tc.text); got != tc.want {
			t.Fatalf("%s: DetectDocumentType = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestManualBeatsTechnicalAndAcademic(t *testing.T) {
	text := "Step 1: open the device manual.\nIn this paper we propose nothing."
	if got := DetectDocumentType("mixed.txt", text); got != domain.DocTypeManual {
		t.Fatalf("DetectDocumentType = %s, want manual (cascade priority)", got)
	}
}
