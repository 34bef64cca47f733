package config

// BlockEntry is one pattern of the default blocklist.
type BlockEntry struct {
	Pattern string
	Reason  string
}

// privacyGroups are sites whose pages should never be recorded: banking,
// password managers, healthcare portals, authentication providers and other
// sensitive services.
var privacyGroups = []struct {
	category string
	domains  []string
}{
	{"Banking & Financial", []string{
		"chase.com",
		"bankofamerica.com",
		"wellsfargo.com",
		"citi.com",
		"usbank.com",
		"capitalone.com",
		"ally.com",
		"schwab.com",
		"fidelity.com",
		"vanguard.com",
		"tdameritrade.com",
		"etrade.com",
		"robinhood.com",
		"paypal.com",
		"venmo.com",
		"zelle.com",
		"mint.com",
		"personalcapital.com",
	}},
	{"Credit Unions & Regional", []string{
		"navyfederal.org",
		"pnc.com",
		"regions.com",
		"suntrust.com",
		"bbt.com",
		"truist.com",
	}},
	{"Password Managers", []string{
		"1password.com",
		"lastpass.com",
		"bitwarden.com",
		"dashlane.com",
		"keepersecurity.com",
		"nordpass.com",
	}},
	{"Authentication & Identity", []string{
		"accounts.google.com",
		"login.microsoftonline.com",
		"login.live.com",
		"auth0.com",
		"okta.com",
		"onelogin.com",
		"duo.com",
	}},
	{"Healthcare & Medical", []string{
		"mychart.com",
		"mychartsso.com",
		"patient.myhealth.com",
		"portal.anthem.com",
		"member.cigna.com",
		"member.aetna.com",
		"member.uhc.com",
		"kp.org",
		"healthcare.gov",
		"medicare.gov",
	}},
	{"Government & Tax", []string{
		"irs.gov",
		"ssa.gov",
		"login.gov",
		"id.me",
		"turbotax.intuit.com",
		"hrblock.com",
	}},
	{"Insurance", []string{
		"geico.com",
		"progressive.com",
		"statefarm.com",
		"allstate.com",
		"usaa.com",
	}},
	{"Crypto & Trading", []string{
		"coinbase.com",
		"binance.com",
		"kraken.com",
		"gemini.com",
	}},
	{"HR & Payroll", []string{
		"workday.com",
		"adp.com",
		"gusto.com",
		"paychex.com",
	}},
}

// DefaultBlocklist returns the curated privacy list as domain patterns, in
// a stable order.
func DefaultBlocklist() []BlockEntry {
	var entries []BlockEntry
	for _, g := range privacyGroups {
		for _, d := range g.domains {
			entries = append(entries, BlockEntry{
				Pattern: "domain:" + d,
				Reason:  "Privacy: " + g.category,
			})
		}
	}
	return entries
}
