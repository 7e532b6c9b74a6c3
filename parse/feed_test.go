package parse

import (
	"strings"
	"testing"
)

func TestExtractFeedRSS(t *testing.T) {
	rss := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example</title>
    <link>http://example.com/</link>
    <item>
      <title>Post 1</title>
      <link>http://example.com/post1</link>
    </item>
    <item>
      <title>Post 2</title>
      <link>http://example.com/post2</link>
      <enclosure url="http://example.com/post2.mp3" type="audio/mpeg" length="1000"/>
    </item>
  </channel>
</rss>`

	base := mustBase(t, "http://example.com/")
	links, err := ExtractFeed(strings.NewReader(rss), base)
	if err != nil {
		t.Fatalf("ExtractFeed: %v", err)
	}
	if len(links) != 4 {
		t.Fatalf("expected 4 links (channel + 2 items + 1 enclosure), got %d: %+v", len(links), links)
	}

	var requisites int
	for _, l := range links {
		if l.Requisite {
			requisites++
		}
	}
	if requisites != 1 {
		t.Errorf("expected 1 requisite (the enclosure), got %d", requisites)
	}
}

func TestExtractFeedAtom(t *testing.T) {
	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Feed</title>
  <link href="http://example.com/"/>
  <entry>
    <title>Entry 1</title>
    <link href="http://example.com/entry1"/>
  </entry>
</feed>`

	base := mustBase(t, "http://example.com/")
	links, err := ExtractFeed(strings.NewReader(atom), base)
	if err != nil {
		t.Fatalf("ExtractFeed: %v", err)
	}
	if len(links) == 0 {
		t.Fatal("expected at least one link from atom feed")
	}
}
