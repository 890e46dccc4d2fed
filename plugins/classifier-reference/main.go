// Command classifier-reference is a keyword classifier served over the
// go-plugin gRPC protocol. It exists to exercise the classifier host.
package main

import (
	"context"
	"strings"

	"github.com/hashicorp/go-plugin"

	classifierrpc "tabtrail/internal/modules/classifier/adapter/out/rpc"
)

type rule struct {
	category   string
	confidence float64
	words      []string
}

var hostRules = []rule{
	{category: "Video", confidence: 0.8, words: []string{"video", "watch", "stream", "tube"}},
	{category: "Shopping", confidence: 0.75, words: []string{"shop", "store", "cart", "checkout"}},
	{category: "News", confidence: 0.7, words: []string{"news", "headline"}},
	{category: "Games", confidence: 0.7, words: []string{"game", "arcade"}},
	{category: "Docs", confidence: 0.65, words: []string{"docs", "manual", "reference"}},
	{category: "Study", confidence: 0.6, words: []string{"learn", "wiki", "course"}},
}

var titleRules = []rule{
	{category: "Study", confidence: 0.55, words: []string{"tutorial", "lecture", "exam"}},
	{category: "Video", confidence: 0.55, words: []string{"episode", "trailer"}},
}

type server struct{}

func (s *server) GetMetadata(_ context.Context, _ *classifierrpc.Empty) (*classifierrpc.Metadata, error) {
	return &classifierrpc.Metadata{
		Name:         "reference",
		Version:      "1.0.0",
		Capabilities: []string{"classify", "titles"},
		Categories:   []string{"Video", "Shopping", "News", "Games", "Docs", "Study"},
	}, nil
}

func (s *server) Classify(_ context.Context, in *classifierrpc.ClassifyRequest) (*classifierrpc.ClassifyResponse, error) {
	target := strings.ToLower(in.Host + in.Path)
	if r, ok := match(hostRules, target); ok {
		return &classifierrpc.ClassifyResponse{Category: r.category, Confidence: r.confidence}, nil
	}
	if r, ok := match(titleRules, strings.ToLower(in.Title)); ok {
		return &classifierrpc.ClassifyResponse{Category: r.category, Confidence: r.confidence}, nil
	}
	return &classifierrpc.ClassifyResponse{}, nil
}

func match(rules []rule, text string) (rule, bool) {
	if text == "" {
		return rule{}, false
	}
	for _, r := range rules {
		for _, w := range r.words {
			if strings.Contains(text, w) {
				return r, true
			}
		}
	}
	return rule{}, false
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: classifierrpc.HandshakeConfig,
		Plugins:         classifierrpc.PluginMap(&server{}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
