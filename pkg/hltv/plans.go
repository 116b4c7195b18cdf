package hltv

import (
	"strconv"

	"github.com/entrhq/hltvquery/pkg/fetch"
)

// Plan lists the regions of one page type to capture and the width the
// composite is scaled to.
type Plan struct {
	Purpose string
	Width   int
	Regions []fetch.Region
}

// Request builds a capture request for entityID on url.
func (p Plan) Request(url string, entityID int) fetch.CaptureRequest {
	return fetch.CaptureRequest{
		URL:      url,
		Purpose:  p.Purpose,
		EntityID: strconv.Itoa(entityID),
		Regions:  p.Regions,
	}
}

// TeamPlan captures the header, profile box and trophy strip of a team page.
var TeamPlan = Plan{
	Purpose: "team",
	Width:   664,
	Regions: []fetch.Region{
		{Name: "bodyshot", Selector: ".bodyshot-team-bg", NominalHeight: 134},
		{Name: "profile", Selector: ".standard-box.profileTopBox.clearfix", NominalHeight: 187},
		{Name: "trophy", Selector: ".trophySection", NominalHeight: 59},
	},
}

// PlayerPlan captures the summary, role stats and statistics boxes of a
// player stats page. The first two render late and are waited for.
var PlayerPlan = Plan{
	Purpose: "player",
	Width:   648,
	Regions: []fetch.Region{
		{Name: "summary", Selector: ".playerSummaryStatBox", NominalHeight: 245, Wait: true},
		{Name: "role_stats", Selector: ".role-stats-container.standard-box", NominalHeight: 305, Wait: true},
		{Name: "stats", Selector: ".statistics", NominalHeight: 248},
	},
}

// MatchPlan captures the score box, the map scores and the stats table of a
// match page.
var MatchPlan = Plan{
	Purpose: "match",
	Width:   645,
	Regions: []fetch.Region{
		{Name: "teams", Selector: ".standard-box.teamsBox", NominalHeight: 300, Wait: true},
		{Name: "score", Selector: ".flexbox-column", NominalHeight: 200},
		{Name: "stats", Selector: "div#all-content.stats-content"},
	},
}
