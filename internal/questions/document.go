package questions

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const docxBody = "word/document.xml"

// ReadDocument returns the text of a transcript. .docx files are unpacked;
// anything else is read as plain text.
func ReadDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		return readDocx(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readDocx(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx %s: %w", path, err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != docxBody {
			continue
		}
		body, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open %s in %s: %w", docxBody, path, err)
		}
		defer body.Close()
		text, err := docxText(body)
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", path, err)
		}
		return text, nil
	}
	return "", fmt.Errorf("%s has no %s", path, docxBody)
}

// docxText walks WordprocessingML, keeping run text, tabs and breaks and
// ending every paragraph with a newline.
func docxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
