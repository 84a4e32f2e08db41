// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package submission

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wailsapp/mimetype"
)

// extensionTypes maps file extensions to the MIME type the browser would
// report for them. Content sniffing wins when it is more specific.
var extensionTypes = map[string]string{
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
	".pptx": MIMEPPTX,
	".xls":  MIMEXLS,
	".xlsx": MIMEXLSX,
	".txt":  MIMETXT,
	".jpg":  MIMEJPEG,
	".jpeg": MIMEJPEG,
	".png":  MIMEPNG,
	".gif":  MIMEGIF,
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// genericTypes are sniffing results too vague to trust over the extension.
var genericTypes = map[string]bool{
	"application/octet-stream":  true,
	"application/zip":           true,
	"application/x-ole-storage": true,
}

// DetectMIME returns the MIME type for a file named name with the given
// leading bytes. Parameters such as charset are dropped.
func DetectMIME(name string, head []byte) string {
	byExt := extensionTypes[strings.ToLower(filepath.Ext(name))]

	sniffed := baseMIME(mimetype.Detect(head).String())
	if sniffed != "" && !genericTypes[sniffed] {
		// Plain text sniffing cannot tell .txt from .csv or source code;
		// keep a known extension in that case.
		if sniffed == MIMETXT && byExt != "" {
			return byExt
		}
		return sniffed
	}
	if byExt != "" {
		return byExt
	}
	if sniffed != "" {
		return sniffed
	}
	return "application/octet-stream"
}

// FromFile loads path as an Attachment. The size is taken from the file
// system before any content is read, so an oversized file is rejected by
// Build without being pulled into memory.
func FromFile(path string, maxSize int64) (*Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	att := &Attachment{
		Name: filepath.Base(path),
		Size: info.Size(),
	}

	if maxSize > 0 && info.Size() > maxSize {
		head := make([]byte, 3072)
		n, _ := io.ReadFull(f, head)
		att.MIMEType = DetectMIME(att.Name, head[:n])
		return att, nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	att.Content = data
	att.MIMEType = DetectMIME(att.Name, data)
	return att, nil
}

// FromBytes builds an Attachment from in-memory content.
func FromBytes(name string, data []byte) *Attachment {
	return &Attachment{
		Name:     name,
		Size:     int64(len(data)),
		MIMEType: DetectMIME(name, data),
		Content:  data,
	}
}
