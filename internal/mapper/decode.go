package mapper

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
)

// Decode reads documents from r. The input may be a JSON array of objects
// or a stream of objects, one per line or concatenated. Numbers are kept as
// json.Number so integer fields are not rounded through float64.
func Decode(r io.Reader) ([]Document, error) {
	br := bufio.NewReader(r)
	dec := json.NewDecoder(br)
	dec.UseNumber()

	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, txerrors.IOError("failed to read documents", err)
	}

	var docs []Document
	if first == '[' {
		if err := dec.Decode(&docs); err != nil {
			return nil, txerrors.ValidationError("invalid JSON document array", err)
		}
		return docs, nil
	}

	for {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, txerrors.ValidationError(fmt.Sprintf("invalid JSON in document %d", len(docs)), err)
		}
		docs = append(docs, doc)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		c, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return c, nil
	}
}
