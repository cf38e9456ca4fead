package lagonlike

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
)

// FormFile is one uploaded file from a multipart/form-data body.
type FormFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Form holds the decoded fields of a multipart/form-data body.
type Form struct {
	Values map[string][]string
	Files  map[string][]FormFile
}

// ParseMultipartForm decodes the request body as multipart/form-data,
// using the boundary from the request's content-type header.
func ParseMultipartForm(req *Request) (*Form, error) {
	mediatype, params, err := mime.ParseMediaType(req.Headers.Get("content-type"))
	if err != nil {
		return nil, fmt.Errorf("content-type: %w", err)
	}
	if mediatype != "multipart/form-data" {
		return nil, fmt.Errorf("content-type %q is not multipart/form-data", mediatype)
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("content-type has no boundary")
	}

	form := &Form{
		Values: map[string][]string{},
		Files:  map[string][]FormFile{},
	}

	mr := multipart.NewReader(bytes.NewReader(req.Body), boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return form, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading part: %w", err)
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("reading part %q: %w", part.FormName(), err)
		}

		name := part.FormName()
		if filename := part.FileName(); filename != "" {
			form.Files[name] = append(form.Files[name], FormFile{
				Filename:    filename,
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			})
			continue
		}
		form.Values[name] = append(form.Values[name], string(data))
	}
}
