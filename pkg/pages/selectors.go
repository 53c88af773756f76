package pages

// Instagram DOM selectors
// These are isolated here because the platform changes its DOM frequently
// Update these when scraping breaks

const BaseURL = "https://www.instagram.com"

// Landing / login page
const (
	SelEntryLogIn    = `//article/div/div/p/a[text()='Log in']`
	SelEntrySignUp   = `//p/a[text()='Sign up']`
	SelInputUsername = `//input[@name='username']`
	SelInputPassword = `//input[@name='password']`
	SelLoginButton   = `//form//button[@type='submit']`

	// Present only for authenticated sessions
	SelNavProfile = `//a[text()="Profile"]`

	// Elevated-risk challenge control
	SelChallengeSend = `//button[contains(text(), 'Send Security Code')]`
)

// Profile page
const (
	SelPostsCount     = `//header//ul/li[1]//span/span`
	SelFollowersCount = `//header//ul/li[2]//span/span`
	SelFollowingCount = `//header//ul/li[3]//span/span`
	SelBio            = `//header/section/div[3]/span`
	SelWebsite        = `//header/section/div[3]/a`
	SelPrivateMarker  = `//*[text()='This Account is Private']`

	SelPostGrid       = `//main//article`
	SelPostLinks      = `//main//article//a[contains(@href, '/p/')]`
	SelLoadingSpinner = `//main//*[@role='progressbar']`
)

// Post page
const (
	SelUnavailable = `//*[contains(text(), "Sorry, this page isn't available")]`

	SelPostTime   = `//article//time`
	SelEngagement = `//article//section/div/span`

	SelCaptionItems   = `//article//ul/li`
	SelCaptionUser    = `.//a`
	SelCaptionText    = `.//span`
	SelLocationAnchor = `//article//header//a[contains(@href, '/explore/locations/')]`

	SelVideo        = `//article//video`
	SelSlideImage   = `//article//li[@aria-hidden='false']//img`
	SelCarouselNext = `//article//button[@aria-label='Next']`
)

const scrollToBottomJS = `window.scrollTo(0, document.body.scrollHeight);`
