package apollo

import (
	"errors"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ErrNoState is returned when the page payload has no props.pageProps.apolloState.
var ErrNoState = errors.New("apollo state not found")

type nextData struct {
	Props struct {
		PageProps struct {
			ApolloState jsontext.Value `json:"apolloState"`
		} `json:"pageProps"`
	} `json:"props"`
}

// FromNextData parses a __NEXT_DATA__ payload and returns its Apollo cache.
func FromNextData(raw []byte) (*Store, error) {
	var doc nextData
	if err := json.Unmarshal(raw, &doc, decodeOptions); err != nil {
		return nil, fmt.Errorf("decode next data: %w", err)
	}
	state := doc.Props.PageProps.ApolloState
	if len(state) == 0 {
		return nil, ErrNoState
	}
	store, err := Parse(state)
	if err != nil {
		return nil, err
	}
	return store, nil
}
