// Package proposal parses inbound edit proposals into register
// payloads. Two formats arrive: the JSON wire format of agent tools,
// and markdown documents whose fenced code blocks carry replacement
// file contents.
package proposal

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/patchgate-project/patchgate/pkg/errclass"
	"github.com/patchgate-project/patchgate/pkg/model"
)

// Proposal is one register payload: a batch of file edits under a
// single permission id.
type Proposal struct {
	PermissionID string           `json:"permission_id"`
	SessionID    string           `json:"session_id"`
	MessageID    string           `json:"message_id,omitempty"`
	Files        []model.FileData `json:"files"`
}

// ParseJSON decodes the JSON wire format.
func ParseJSON(data []byte) (*Proposal, error) {
	var p Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errclass.ErrInvalidProposal.WithMessagef("parse json: %v", err)
	}
	if p.PermissionID == "" {
		return nil, errclass.ErrInvalidProposal.WithMessage("missing permission_id")
	}
	if len(p.Files) == 0 {
		return nil, errclass.ErrInvalidProposal.WithMessage("no files")
	}
	for i, f := range p.Files {
		if f.Filepath == "" {
			return nil, errclass.ErrInvalidProposal.WithMessagef("file %d missing filePath", i)
		}
	}
	return &p, nil
}

// ParseMarkdown extracts file edits from fenced code blocks. A block
// counts only when its directly preceding paragraph quotes the target
// path in backticks; the block body becomes the proposed content and
// the current disk content (relative to root) the original. Blocks
// without a path hint are skipped. Permission and session ids are
// generated, since the markdown form carries none.
func ParseMarkdown(source []byte, root string) (*Proposal, error) {
	parser := goldmark.DefaultParser()
	doc := parser.Parse(text.NewReader(source))

	var files []model.FileData
	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		hinted := pathHint(block, source)
		if hinted == "" {
			return ast.WalkSkipChildren, nil
		}

		target := hinted
		rel := ""
		if !filepath.IsAbs(hinted) {
			rel = hinted
			target = filepath.Join(root, hinted)
		}

		before := ""
		if data, err := os.ReadFile(target); err == nil {
			before = string(data)
		}

		lang := ""
		if block.Info != nil {
			lang = string(block.Info.Text(source))
		}

		files = append(files, model.FileData{
			Filepath:     target,
			RelativePath: rel,
			Before:       before,
			After:        blockBody(block, source),
			Type:         lang,
		})
		return ast.WalkSkipChildren, nil
	}
	if err := ast.Walk(doc, walker); err != nil {
		return nil, errclass.ErrInvalidProposal.WithMessagef("walk markdown: %v", err)
	}
	if len(files) == 0 {
		return nil, errclass.ErrInvalidProposal.WithMessage("no file blocks found")
	}

	return &Proposal{
		PermissionID: uuid.NewString(),
		SessionID:    uuid.NewString(),
		Files:        files,
	}, nil
}

// ParseFile reads a proposal from disk. A .json extension selects the
// wire format; anything else is treated as markdown.
func ParseFile(path, root string) (*Proposal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errclass.ErrIO.WithMessagef("read proposal: %v", err)
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return ParseJSON(data)
	}
	return ParseMarkdown(data, root)
}

// pathHint pulls the backtick-quoted path from the paragraph directly
// above a code block. Paths with spaces are rejected so a quoted shell
// command is not mistaken for a file.
func pathHint(block *ast.FencedCodeBlock, source []byte) string {
	prev := block.PreviousSibling()
	para, ok := prev.(*ast.Paragraph)
	if !ok {
		return ""
	}
	for child := para.FirstChild(); child != nil; child = child.NextSibling() {
		span, ok := child.(*ast.CodeSpan)
		if !ok {
			continue
		}
		path := strings.TrimSpace(string(span.Text(source)))
		if path != "" && !strings.Contains(path, " ") {
			return path
		}
	}
	return ""
}

func blockBody(block *ast.FencedCodeBlock, source []byte) string {
	var body bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		body.Write(line.Value(source))
	}
	return body.String()
}
