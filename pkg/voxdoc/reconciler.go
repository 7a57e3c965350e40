package voxdoc

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PatchMode selects how patch content lands on the matched element.
type PatchMode int

const (
	// PatchReplaceContent swaps the element's inner content.
	PatchReplaceContent PatchMode = iota
	// PatchAppendChild inserts content as the element's last child.
	PatchAppendChild
)

func (m PatchMode) String() string {
	switch m {
	case PatchReplaceContent:
		return "replace_content"
	case PatchAppendChild:
		return "append_child"
	default:
		return "unknown"
	}
}

// PatchModeFromTool maps a wire tool name onto a patch mode.
func PatchModeFromTool(name string) (PatchMode, bool) {
	switch name {
	case ToolUpdateElement:
		return PatchReplaceContent, true
	case ToolAppendElement:
		return PatchAppendChild, true
	default:
		return 0, false
	}
}

// PatchRequest is one edit against the current document.
type PatchRequest struct {
	Selector string
	HTML     string
	Mode     PatchMode
}

// PatchResult reports the outcome of one patch attempt. Version is the
// document version after the attempt; on failure it is the unchanged
// pre-patch version.
type PatchResult struct {
	Success  bool
	Selector string
	Mode     PatchMode
	Version  int64
	Err      *VoxdocError
}

// DocumentReconciler turns tool calls into committed document mutations.
// All matching uses first-match semantics, mirroring querySelector.
type DocumentReconciler struct {
	doc    *DocumentManager
	logger *VoxdocLogger
}

func NewDocumentReconciler(doc *DocumentManager) *DocumentReconciler {
	return &DocumentReconciler{
		doc:    doc,
		logger: GetGlobalLogger().WithComponent("reconciler"),
	}
}

// Document exposes the underlying manager.
func (r *DocumentReconciler) Document() *DocumentManager {
	return r.doc
}

// ApplyTool validates tool-call arguments and applies the patch. Unknown
// tools and malformed arguments fail without touching the document.
func (r *DocumentReconciler) ApplyTool(name string, args map[string]interface{}) PatchResult {
	mode, ok := PatchModeFromTool(name)
	if !ok {
		return r.fail(PatchRequest{}, NewToolArgsError("unknown tool: "+name))
	}

	req := PatchRequest{Mode: mode}
	if !hasKey(args, "selector") {
		return r.fail(req, NewToolArgsError("missing selector argument"))
	}
	sel, ok := getString(args, "selector")
	if !ok || sel == "" {
		return r.fail(req, NewToolArgsError("selector must be a non-empty string"))
	}
	req.Selector = sel

	if !hasKey(args, "html") {
		return r.fail(req, NewToolArgsError("missing html argument"))
	}
	html, ok := getString(args, "html")
	if !ok {
		return r.fail(req, NewToolArgsError("html must be a string"))
	}
	req.HTML = html

	return r.Apply(req)
}

// Apply commits one patch as an atomic document transaction. A selector that
// matches nothing (or fails to compile) aborts before serialization, leaving
// the stored document byte-identical.
func (r *DocumentReconciler) Apply(req PatchRequest) PatchResult {
	_, version, err := r.doc.Apply(func(current string) (string, error) {
		return patchHTML(current, req)
	})
	if err != nil {
		vErr, ok := err.(*VoxdocError)
		if !ok {
			vErr = WrapError(err, ErrCodeUnknown)
		}
		r.logger.LogPatchEvent(req.Mode.String(), req.Selector, false, map[string]interface{}{
			"code": vErr.Code,
		})
		return PatchResult{Selector: req.Selector, Mode: req.Mode, Version: version, Err: vErr}
	}

	r.logger.LogPatchEvent(req.Mode.String(), req.Selector, true, map[string]interface{}{
		"version": version,
	})
	return PatchResult{
		Success:  true,
		Selector: req.Selector,
		Mode:     req.Mode,
		Version:  version,
	}
}

func (r *DocumentReconciler) fail(req PatchRequest, vErr *VoxdocError) PatchResult {
	r.logger.LogPatchEvent(req.Mode.String(), req.Selector, false, map[string]interface{}{
		"code": vErr.Code,
	})
	return PatchResult{
		Selector: req.Selector,
		Mode:     req.Mode,
		Version:  r.doc.Version(),
		Err:      vErr,
	}
}

// patchHTML performs the parse/match/mutate/serialize cycle on one document
// snapshot. It never partially mutates: any error returns before the new
// serialization is produced.
func patchHTML(current string, req PatchRequest) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(current))
	if err != nil {
		return "", WrapError(err, ErrCodeUnknown)
	}

	target := doc.Find(req.Selector).First()
	if target.Length() == 0 {
		return "", NewSelectorError(req.Selector)
	}

	switch req.Mode {
	case PatchReplaceContent:
		target.SetHtml(req.HTML)
	case PatchAppendChild:
		target.AppendHtml(req.HTML)
	default:
		return "", NewToolArgsError("unsupported patch mode")
	}

	return serializeDocument(doc, current)
}

// serializeDocument renders the mutated tree back to a string. Full documents
// round-trip whole; bare fragments come back as head plus body content so
// parser-hoisted nodes (style, title) are not dropped.
func serializeDocument(doc *goquery.Document, original string) (string, error) {
	if strings.Contains(strings.ToLower(original), "<html") {
		out, err := goquery.OuterHtml(doc.Selection)
		if err != nil {
			return "", err
		}
		return out, nil
	}

	head, err := doc.Find("head").Html()
	if err != nil {
		return "", err
	}
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	return head + body, nil
}
