package chunking

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

var codeExtensions = map[string]struct{}{
	".go": {}, ".py": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {},
	".java": {}, ".c": {}, ".h": {}, ".cpp": {}, ".cc": {}, ".rs": {},
	".rb": {}, ".php": {}, ".cs": {}, ".swift": {}, ".kt": {}, ".scala": {},
	".sh": {}, ".sql": {},
}

var markdownExtensions = map[string]struct{}{
	".md": {}, ".markdown": {}, ".mdx": {},
}

var (
	manualStructureRe  = regexp.MustCompile(`(?mi)^\s*(step\s+\d+|chapter\s+\d+|section\s+\d+(\.\d+)*)[.:)\s]`)
	technicalRe        = regexp.MustCompile(`(?mi)^\s*\d+(\.\d+)+\s+\S`)
	academicHeadingsRe = regexp.MustCompile(`(?mi)^\s*(abstract|introduction|related work|methodology|conclusion|references|acknowledg)`)
	codeFenceRe        = regexp.MustCompile("(?m)^```")
)

var manualKeywords = []string{"user manual", "operating instructions", "installation guide", "troubleshooting"}
var technicalKeywords = []string{"specification", "api reference", "configuration", "architecture", "requirements"}
var academicKeywords = []string{"et al.", "in this paper", "we propose", "hypothesis", "empirical"}

// DetectDocumentType runs the priority cascade: code extension, markdown
// extension, manual structure, technical markers, academic markers,
// general.
func DetectDocumentType(filename, text string) domain.DocumentType {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := codeExtensions[ext]; ok {
		return domain.DocTypeCode
	}
	if _, ok := markdownExtensions[ext]; ok {
		return domain.DocTypeMarkdown
	}

	sample := strings.ToLower(sampleHead(text, 4000))

	if len(codeFenceRe.FindAllStringIndex(text, 3)) >= 2 {
		return domain.DocTypeMarkdown
	}
	if manualStructureRe.MatchString(text) || containsAny(sample, manualKeywords) {
		return domain.DocTypeManual
	}
	if technicalRe.MatchString(text) || containsAny(sample, technicalKeywords) {
		return domain.DocTypeTechnical
	}
	if academicHeadingsRe.MatchString(text) || containsAny(sample, academicKeywords) {
		return domain.DocTypeAcademic
	}
	return domain.DocTypeGeneral
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func sampleHead(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
