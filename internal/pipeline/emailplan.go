package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/docbox-nz/docbox/internal/model"
)

// EmailPlan implements the message/rfc822 derivation plan: parse the
// MIME tree, extract plain text (TextContent), sanitize and
// cid:-inline the HTML part (HtmlContent), emit each attachment as a
// child File, and aggregate header+body+attachment text into
// FilePages. MIME parsing stays on the standard library (net/mail,
// mime/multipart); bluemonday handles the HTML sanitization.
type EmailPlan struct{}

var _ Plan = (*EmailPlan)(nil)

func (p *EmailPlan) Run(ctx context.Context, rc *RunContext) error {
	msg, err := mail.ReadMessage(bytes.NewReader(rc.File))
	if err != nil {
		return fmt.Errorf("pipeline.EmailPlan: parse message: %w", err)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}

	var plainText, htmlText strings.Builder
	inline := map[string]inlineImage{} // content-id -> image, for cid: rewriting
	var attachments []attachment

	if strings.HasPrefix(mediaType, "multipart/") {
		if err := walkMultipart(msg.Body, params["boundary"], &plainText, &htmlText, inline, &attachments); err != nil {
			return fmt.Errorf("pipeline.EmailPlan: walk parts: %w", err)
		}
	} else {
		body, _ := io.ReadAll(msg.Body)
		if mediaType == "text/html" {
			htmlText.Write(body)
		} else {
			plainText.Write(body)
		}
	}

	subject := msg.Header.Get("Subject")
	headerText := fmt.Sprintf("Subject: %s\nFrom: %s\nTo: %s\n", subject, msg.Header.Get("From"), msg.Header.Get("To"))

	if plainText.Len() > 0 {
		if err := putGenerated(ctx, rc, model.GeneratedTextContent, "text/plain", []byte(plainText.String())); err != nil {
			return err
		}
	}

	if htmlText.Len() > 0 {
		// cid: references are rewritten to data URLs before
		// sanitizing; the policy must then admit data-URI images or
		// the sanitizer would strip the inlined attachments back out.
		policy := bluemonday.UGCPolicy()
		policy.AllowDataURIImages()
		sanitized := policy.Sanitize(inlineCIDs(htmlText.String(), inline))
		if err := putGenerated(ctx, rc, model.GeneratedHtmlContent, "text/html", []byte(sanitized)); err != nil {
			return err
		}
	}

	var childNames []string
	for _, att := range attachments {
		child, err := rc.EmitChild(ctx, att.filename, att.mime, att.data)
		if err != nil {
			return fmt.Errorf("pipeline.EmailPlan: emit attachment %q: %w", att.filename, err)
		}
		childNames = append(childNames, child.Name)
	}

	aggregate := headerText + "\n" + plainText.String()
	if len(childNames) > 0 {
		aggregate += "\nAttachments: " + strings.Join(childNames, ", ")
	}
	return rc.Pages.Upsert(ctx, &model.FilePage{FileID: rc.Meta.ID, Page: 1, Content: aggregate})
}

type attachment struct {
	filename string
	mime     string
	data     []byte
}

type inlineImage struct {
	mime string
	data []byte
}

func walkMultipart(r io.Reader, boundary string, plainText, htmlText *strings.Builder, inline map[string]inlineImage, attachments *[]attachment) error {
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		partType, partParams, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		data, err := readPart(part)
		if err != nil {
			return err
		}

		cid := strings.Trim(part.Header.Get("Content-ID"), "<>")
		disposition := part.Header.Get("Content-Disposition")

		// A cid-referenced image is captured for cid: rewriting AND may
		// still be an attachment below — a named logo.png cited from the
		// HTML body is both inlined and emitted as a child file.
		inlined := cid != "" && strings.HasPrefix(partType, "image/")
		if inlined {
			inline[cid] = inlineImage{mime: partType, data: data}
		}

		switch {
		case strings.HasPrefix(partType, "multipart/"):
			if err := walkMultipart(bytes.NewReader(data), partParams["boundary"], plainText, htmlText, inline, attachments); err != nil {
				return err
			}
		case strings.HasPrefix(disposition, "attachment") || part.FileName() != "":
			name := part.FileName()
			if name == "" {
				name = "attachment"
			}
			*attachments = append(*attachments, attachment{filename: name, mime: partType, data: data})
		case inlined:
			// Inline-only image with no filename; already captured.
		case partType == "text/html":
			htmlText.Write(data)
		default:
			plainText.Write(data)
		}
	}
}

func readPart(part *multipart.Part) ([]byte, error) {
	data, err := io.ReadAll(part)
	if err != nil {
		return nil, err
	}
	switch part.Header.Get("Content-Transfer-Encoding") {
	case "base64":
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
		n, err := base64.StdEncoding.Decode(decoded, bytes.TrimSpace(data))
		if err != nil {
			return data, nil // fall back to raw bytes rather than fail the whole email
		}
		return decoded[:n], nil
	default:
		return data, nil
	}
}

// inlineCIDs replaces cid: references with base64 data URLs so the
// stored HTML renders without reaching back into the message.
func inlineCIDs(html string, inline map[string]inlineImage) string {
	for cid, img := range inline {
		dataURL := "data:" + img.mime + ";base64," + base64.StdEncoding.EncodeToString(img.data)
		html = strings.ReplaceAll(html, "cid:"+cid, dataURL)
	}
	return html
}
