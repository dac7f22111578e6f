// Package m3u renders the committed plan's channel list to an M3U
// playlist. Rendering never reads live state beyond what the caller
// passes in; the result is written to disk once per build rather than
// recomputed per request.
package m3u

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/snapetech/sportsgrid/internal/model"
)

// Config controls URL construction for each lane entry.
type Config struct {
	ResolverBaseURL string
	GroupTitle      string
	CCHost          string
	CCPort          int
}

// Render emits one #EXTINF + URL line pair per active channel, in the
// order channels are given (Store.ListChannels returns them by chno), per
// §6's M3U artifact spec.
func Render(channels []model.Channel, cfg Config) []byte {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")

	for _, c := range channels {
		if !c.Active {
			continue
		}
		group := cfg.GroupTitle
		if group == "" {
			group = c.GroupName
		}
		laneURL := laneURL(c.ChannelID, cfg)
		fmt.Fprintf(&b, "#EXTINF:-1 tvg-id=%q tvg-chno=%q group-title=%q,%s\n", c.ChannelID, fmt.Sprint(c.Chno), group, escapeDisplayName(c.Name))
		b.WriteString(laneURL)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func laneURL(channelID string, cfg Config) string {
	resolverURL := strings.TrimSuffix(cfg.ResolverBaseURL, "/") + "/vc/" + channelID
	if cfg.CCHost == "" {
		return resolverURL
	}
	return fmt.Sprintf("chrome://%s:%d/stream?url=%s", cfg.CCHost, cfg.CCPort, url.QueryEscape(resolverURL))
}

func escapeDisplayName(name string) string {
	return strings.ReplaceAll(name, ",", " ")
}
