package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/21prnv/InfluenceIq/pkg/models"
)

// "1,234 Followers, 56 Following, 78 Posts - See Instagram photos and ..."
var countersPattern = regexp.MustCompile(`([\d.,]+[KkMm]?)\s+Followers?,\s*([\d.,]+[KkMm]?)\s+Following,\s*([\d.,]+[KkMm]?)\s+Posts?`)

// "Display Name (@user) • Instagram photos and videos"
var ogTitleName = regexp.MustCompile(`^(.+?)\s*\(@[^)]+\)`)

// Profile field cascades, in priority order.
var (
	ProfileName = Cascade[string]{
		textOf(`h1[class*="x1lliihq"]`, nil),
		textOf(`h2[class*="x1lliihq"]`, nil),
		textOf(`header h1`, nil),
		textOf(`header h2`, nil),
		metaMatch("og:title", ogTitleName),
		embeddedOf("full_name", func(s *embeddedState) interface{} {
			return s.profileUser()["full_name"]
		}),
	}

	ProfileBio = Cascade[string]{
		textOf(`div[class*="x7a106z"] span`, nil),
		textOf(`div[class*="x1qjc9v5"] span`, notCounter),
		textOf(`header section h1 ~ span`, notCounter),
		embeddedOf("biography", func(s *embeddedState) interface{} {
			return s.profileUser()["biography"]
		}),
	}

	ProfileImage = Cascade[string]{
		attrOf(`img[class*="xpdipgo"]`, "src", notBlob),
		attrOf(`header img`, "src", notBlob),
		attrOf(`img[alt*="profile"]`, "src", notBlob),
		attrOf(`img[src*="profile"]`, "src", notBlob),
		metaOf("og:image", nil),
		embeddedOf("profile_pic_url", func(s *embeddedState) interface{} {
			u := s.profileUser()
			if v := u["profile_pic_url_hd"]; v != nil {
				return v
			}
			return u["profile_pic_url"]
		}),
	}

	ProfileFollowers = counterCascade("followers", 1, "edge_followed_by")
	ProfileFollowing = counterCascade("following", 2, "edge_follow")
	ProfilePosts     = counterCascade("posts", 3, "edge_owner_to_timeline_media")

	ProfileLinks = Cascade[[]string]{
		externalLinksIn(`header a[href]`),
		externalLinksIn(`a[href^="http"]`),
		embeddedLinks(),
	}
)

// notCounter rejects the "12 posts" style labels that share bio containers.
func notCounter(s string) bool {
	l := strings.ToLower(s)
	return !strings.HasSuffix(l, "followers") && !strings.HasSuffix(l, "following") &&
		!strings.HasSuffix(l, "posts")
}

// counterCascade builds the cascade for one header counter: the stats list,
// then the meta description, then the embedded edge count.
func counterCascade(label string, group int, edge string) Cascade[string] {
	stem := strings.TrimSuffix(label, "s")
	if label == "following" {
		stem = label
	}
	listed := regexp.MustCompile(`(?i)([\d.,]+\s?[KkMm]?)\s+` + stem)

	return Cascade[string]{
		{
			Name: "stats:" + label,
			Extract: func(d *Doc) (string, bool) {
				var out string
				d.Find(`header ul li, ul li`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
					if m := listed.FindStringSubmatch(clean(s.Text())); m != nil {
						out = strings.ReplaceAll(m[1], " ", "")
						return false
					}
					return true
				})
				return out, out != ""
			},
		},
		{
			Name: "meta-description:" + label,
			Extract: func(d *Doc) (string, bool) {
				for _, name := range []string{"description", "og:description"} {
					if m := countersPattern.FindStringSubmatch(d.metaContent(name)); m != nil {
						return m[group], true
					}
				}
				return "", false
			},
		},
		embeddedOf(edge, func(s *embeddedState) interface{} {
			return lookup(s.profileUser(), edge, "count")
		}),
	}
}

// ExtractProfile derives the profile record from a profile page snapshot.
// Fields no strategy can derive stay empty.
func ExtractProfile(d *Doc, account string) models.ProfileRecord {
	return models.ProfileRecord{
		Username:     account,
		DisplayName:  ProfileName.Value(d),
		Biography:    ProfileBio.Value(d),
		ProfileImage: ProfileImage.Value(d),
		Links:        ProfileLinks.Value(d),
		Followers:    ProfileFollowers.Value(d),
		Following:    ProfileFollowing.Value(d),
		Posts:        ProfilePosts.Value(d),
	}
}
