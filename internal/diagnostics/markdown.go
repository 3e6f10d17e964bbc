package diagnostics

import (
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/21prnv/InfluenceIq/internal/utils/url"
)

// Markdown renders a readable digest of a captured page. Relative links are
// resolved against pageURL.
func Markdown(htmlContent, pageURL string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, exists := selec.Attr("href")
			if !exists {
				return nil
			}
			resolved := urlutil.ResolveURL(pageURL, href)
			str := fmt.Sprintf("[%s](%s)", selec.Text(), resolved)
			return &str
		},
	})

	cleaned, err := CleanHTML(htmlContent)
	if err != nil {
		return "", err
	}
	out, err := converter.ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("# %s\n\n%s\n", pageURL, out), nil
}
