package browser

// initScript runs in every document before the site's own scripts. It hides
// the automation flag the site checks and stores an all-accepted consent
// record so the consent dialog never renders.
const initScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
try {
	window.localStorage.setItem('CookieConsent', JSON.stringify({
		accepted: true,
		necessary: true,
		preferences: true,
		statistics: true,
		marketing: true
	}));
} catch (e) {}
`

// OverlaySelectors match consent banners and their backdrops.
var OverlaySelectors = []string{
	"#CybotCookiebotDialog",
	".CookieDeclaration",
	"#CybotCookiebotDialogBodyUnderlay",
	".cookiebot-overlay",
	`[class*="cookie-notice"]`,
	`[class*="cookie-banner"]`,
	`[id*="cookie-banner"]`,
	`[id*="cookie-notice"]`,
}

// cleanupScript removes overlay nodes, adds a stylesheet that keeps late
// arrivals hidden, and marks consent as given. It returns the number of
// nodes removed.
const cleanupScript = `(selectors) => {
	let removed = 0;
	for (const selector of selectors) {
		document.querySelectorAll(selector).forEach(el => { el.remove(); removed++; });
	}
	const style = document.createElement('style');
	style.textContent = selectors.join(',\n') + ` + "`" + ` {
		display: none !important;
		visibility: hidden !important;
		opacity: 0 !important;
		z-index: -9999 !important;
	}` + "`" + `;
	(document.head || document.documentElement).appendChild(style);
	window.CookieConsent = {
		consent: {stamp: '0', necessary: true, preferences: true, statistics: true, marketing: true}
	};
	return removed;
}`
