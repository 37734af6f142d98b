package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"regime-trader/internal/domain"
)

// LoadMarketFile reads ticks from a JSON file holding either one array or
// one object per line. Every tick is validated and the chronology checked.
func LoadMarketFile(path string) ([]domain.MarketDataPoint, error) {
	ticks, err := decodeFile[domain.MarketDataPoint](path)
	if err != nil {
		return nil, err
	}
	for i := range ticks {
		if err := ticks[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: tick %d: %w", path, i, err)
		}
	}
	if err := ValidateMarketData(ticks); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ticks, nil
}

// LoadSignalsFile reads signals in the same formats as LoadMarketFile.
func LoadSignalsFile(path string) ([]domain.Signal, error) {
	signals, err := decodeFile[domain.Signal](path)
	if err != nil {
		return nil, err
	}
	for i := range signals {
		if err := signals[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: signal %d: %w", path, i, err)
		}
	}
	if err := ValidateSignals(signals); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return signals, nil
}

func decodeFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	out, err := decode[T](f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// decode accepts a JSON array or a stream of JSON values.
func decode[T any](r io.Reader) ([]T, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var out []T
		if err := dec.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}

	var out []T
	for {
		var v T
		err := dec.Decode(&v)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(out), err)
		}
		out = append(out, v)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
