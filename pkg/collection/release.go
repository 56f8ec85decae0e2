package collection

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// releasesPage is the body of a collection folder releases response.
type releasesPage struct {
	Pagination *struct {
		Pages *int `json:"pages"`
		Items *int `json:"items"`
	} `json:"pagination"`
	Releases []release `json:"releases"`
}

type release struct {
	ID               int64 `json:"id"`
	BasicInformation *struct {
		Title   *string `json:"title"`
		Year    *int    `json:"year"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		CoverImage *string `json:"cover_image"`
	} `json:"basic_information"`
}

// toItem maps a release entry, filling in display defaults for missing fields.
func (r release) toItem() Item {
	it := Item{
		ID:      r.ID,
		Title:   "Unknown",
		Artists: "Unknown",
	}

	info := r.BasicInformation
	if info == nil {
		return it
	}

	if info.Title != nil {
		it.Title = *info.Title
	}
	// Discogs reports an unknown year as 0.
	if info.Year != nil && *info.Year != 0 {
		it.Year = strconv.Itoa(*info.Year)
	}
	if len(info.Artists) > 0 {
		names := make([]string, 0, len(info.Artists))
		for _, a := range info.Artists {
			names = append(names, a.Name)
		}
		it.Artists = strings.Join(names, ", ")
	}
	if info.CoverImage != nil {
		it.Cover = *info.CoverImage
	}
	return it
}

// decodedPage is a successful page after mapping.
type decodedPage struct {
	Items      []Item
	TotalPages int
	PagesKnown bool
	TotalItems int
	ItemsKnown bool
}

func decodePage(body []byte) (decodedPage, error) {
	var raw releasesPage
	if err := json.Unmarshal(body, &raw); err != nil {
		return decodedPage{}, fmt.Errorf("decode releases page: %w", err)
	}

	page := decodedPage{Items: make([]Item, 0, len(raw.Releases))}
	for _, r := range raw.Releases {
		page.Items = append(page.Items, r.toItem())
	}

	if p := raw.Pagination; p != nil {
		if p.Pages != nil {
			page.TotalPages, page.PagesKnown = *p.Pages, true
		}
		if p.Items != nil {
			page.TotalItems, page.ItemsKnown = *p.Items, true
		}
	}
	return page, nil
}
