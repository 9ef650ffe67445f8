package patterns

// Term is one alternative spelling of a category. NotFollowedBy rejects a
// match when the text right after it matches the guard.
type Term struct {
	Pattern       string
	NotFollowedBy string
}

// Definition declares a category of a taxonomy.
type Definition struct {
	Name  string
	Terms []Term
	// ExcludedBy lists sibling categories that suppress this one when any of
	// them matches anywhere in the same text.
	ExcludedBy []string
}

func terms(patterns ...string) []Term {
	out := make([]Term, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, Term{Pattern: p})
	}
	return out
}

// IUDBrands are the specific IUD categories that claim text from "IUD (general)".
var IUDBrands = []string{"Mirena", "Kyleena", "Paragard", "Liletta", "Skyla"}

// EntityDefinitions is the contraceptive taxonomy.
var EntityDefinitions = []Definition{
	{Name: "Mirena", Terms: terms(`\bmir[ei]na\b`, `\bmer[ei]na\b`)},
	{Name: "Kyleena", Terms: terms(`\bkyleena\b`, `\bkylena\b`)},
	{Name: "Liletta", Terms: terms(`\bliletta\b`, `\blilletta\b`)},
	{Name: "Skyla", Terms: terms(`\bskyla\b`, `\bskila\b`)},
	{Name: "Paragard", Terms: terms(`\bparagard\b`, `\bparaguard\b`, `\bpara\s*guard\b`, `\bcopper\s*iud\b`, `\bcopper\s*t\b`)},
	{Name: "IUD (general)", Terms: terms(`\biud\b`, `\bhormonal\s+iud\b`), ExcludedBy: IUDBrands},
	{Name: "Nexplanon", Terms: terms(`\bnexplanon\b`, `\bnexplanion\b`, `\bimplanon\b`, `\bthe\s+implant\b`, `\barm\s+implant\b`, `\bimplant\s+in\s+(?:my\s+)?arm\b`)},
	{Name: "Combined pill", Terms: terms(`\bcombined\s+pill\b`, `\bcombination\s+pill\b`, `\bcoc\b`)},
	{Name: "Mini pill", Terms: terms(`\bmini[\s-]*pill\b`, `\bpop\b(?:\s+pill)?`, `\bprogestin[\s-]+only\s+pill\b`)},
	{Name: "The pill (general)", Terms: terms(`\b(?:the|birth\s*control|bc)\s+pills?\b`, `\boral\s+contracepti\w+\b`, `\bbc\s+pills?\b`)},
	{Name: "Depo-Provera", Terms: terms(`\bdepo\b`, `\bthe\s+shot\b`, `\bdepo[\s-]*provera\b`, `\bbirth\s*control\s+shot\b`, `\bbc\s+shot\b`)},
	{Name: "NuvaRing", Terms: terms(`\bnuvaring\b`, `\bnuva\s+ring\b`, `\bthe\s+ring\b`, `\bannovera\b`)},
	{Name: "Xulane patch", Terms: terms(`\bxulane\b`, `\bthe\s+patch\b`, `\bortho\s*evra\b`, `\btwirla\b`, `\bbc\s+patch\b`, `\bbirth\s*control\s+patch\b`)},
	{Name: "Plan B", Terms: terms(`\bplan\s*b\b`, `\bmorning[\s-]+after\b`, `\bemergency\s+contracep\w+\b`, `\bella\b`, `\bec\s+pill\b`)},
	{Name: "Condoms", Terms: terms(`\bcondoms?\b`)},
	{Name: "Spermicide", Terms: terms(`\bspermicid\w+\b`)},
	{Name: "Diaphragm", Terms: terms(`\bdiaphragm\b`, `\bcaya\b`)},
	{Name: "FAM/NFP", Terms: terms(`\bfam\b`, `\bnfp\b`, `\bfertility\s+awareness\b`, `\bnatural\s+family\s+planning\b`, `\btemping\b`, `\bbbt\b`, `\bbasal\s+body\s+temp\b`)},
	{Name: "Withdrawal", Terms: terms(`\bwithdrawal\b`, `\bpull\s*(?:ing\s+)?out\b`, `\bpull\s+out\s+method\b`)},
	{Name: "Slynd", Terms: terms(`\bslynd\b`)},
	{Name: "Yaz", Terms: terms(`\byaz\b`, `\byasmin\b`, `\byasmine\b`)},
	{Name: "Lo Loestrin", Terms: terms(`\blo\s*loestrin\b`, `\blo\s*lo\b`)},
	{Name: "Phexxi", Terms: terms(`\bphexxi\b`)},
	{Name: "Ortho Tri-Cyclen", Terms: terms(`\bortho[\s-]*tri[\s-]*cyclen\b`, `\btri[\s-]*sprintec\b`, `\btri[\s-]*lo[\s-]*sprintec\b`)},
	{Name: "Junel", Terms: []Term{
		{Pattern: `\bjunel\b`},
		{Pattern: `\bjunel\s+fe\b`},
		{Pattern: `\bloestrin\b`, NotFollowedBy: `\s*lo`},
		{Pattern: `\bmicrogestin\b`},
	}},
	{Name: "Seasonique", Terms: terms(`\bseasonique\b`, `\bseasonale\b`, `\bjolessa\b`, `\bcamrese\b`)},
	{Name: "Sprintec", Terms: []Term{
		{Pattern: `\bsprintec\b`, NotFollowedBy: `\s*tri`},
		{Pattern: `\bmono[\s-]*linyah\b`},
	}},
}

// SideEffectDefinitions is the symptom and concern taxonomy.
var SideEffectDefinitions = []Definition{
	{Name: "Bleeding/spotting", Terms: terms(`\bbleed(?:ing)?\b`, `\bspotting\b`, `\bheavy\s+period\b`, `\birregular\s+bleed`)},
	{Name: "Cramping", Terms: terms(`\bcramp(?:s|ing)?\b`)},
	{Name: "Weight gain", Terms: terms(`\bweight\s+gain\b`, `\bgained\s+weight\b`, `\bgaining\s+weight\b`)},
	{Name: "Weight loss", Terms: terms(`\bweight\s+loss\b`, `\blos(?:t|ing)\s+weight\b`)},
	{Name: "Acne", Terms: terms(`\bacne\b`, `\bbreakouts?\b`, `\bpimples?\b`, `\bzits?\b`)},
	{Name: "Hair loss", Terms: terms(`\bhair\s+(?:loss|thin(?:ning)?|fall(?:ing)?)\b`, `\bshedding\s+hair\b`, `\blosing\s+hair\b`)},
	{Name: "Mood swings", Terms: terms(`\bmood\s+swings?\b`, `\bmood\s+changes?\b`, `\bemotional\b`, `\birritable\b`, `\birritab(?:le|ility)\b`)},
	{Name: "Depression", Terms: terms(`\bdepress(?:ed|ion|ing)?\b`, `\bmental\s+health\b`, `\bsuicidal\b`)},
	{Name: "Anxiety", Terms: terms(`\banxi(?:ety|ous)\b`, `\bpanic\s+attacks?\b`, `\bnervous(?:ness)?\b`)},
	{Name: "Headaches", Terms: terms(`\bheadaches?\b`, `\bmigraines?\b`)},
	{Name: "Nausea", Terms: terms(`\bnause(?:a|ous|ated)\b`, `\bvomit(?:ing)?\b`, `\bthrew\s+up\b`, `\bthrow(?:ing)?\s+up\b`)},
	{Name: "Fatigue", Terms: terms(`\bfatigued?\b`, `\bexhaust(?:ed|ion)\b`, `\btired(?:ness)?\b`, `\blethargi?c\b`, `\bno\s+energy\b`)},
	{Name: "Low libido", Terms: terms(`\blow\s+libido\b`, `\bno\s+(?:sex\s+)?drive\b`, `\blibido\b`, `\bsex\s+drive\b`)},
	{Name: "Breast tenderness", Terms: terms(`\bbreast\s+(?:tender(?:ness)?|sore(?:ness)?|pain)\b`, `\bsore\s+breasts?\b`, `\bsore\s+boobs?\b`)},
	{Name: "Bloating", Terms: terms(`\bbloat(?:ed|ing)?\b`)},
	{Name: "Back pain", Terms: terms(`\bback\s+pain\b`, `\blower\s+back\b`)},
	{Name: "Insertion pain", Terms: terms(`\binsertion\s+(?:pain|hurt|awful|terrible)\b`, `\bpain(?:ful)?\s+insertion\b`)},
	{Name: "Removal pain", Terms: terms(`\bremoval\s+(?:pain|hurt)\b`, `\bpain(?:ful)?\s+removal\b`)},
	{Name: "Infection", Terms: terms(`\binfections?\b`, `\bbv\b`, `\byeast\s+infection\b`, `\bbacterial\s+vaginosis\b`, `\buti\b`)},
	{Name: "Strings", Terms: terms(`\bstrings?\b`, `\bcan'?t\s+feel\b`, `\bpartner\s+(?:feel|felt)\b`)},
	{Name: "Expulsion", Terms: terms(`\bexpuls(?:ion|ed)\b`, `\bfell\s+out\b`, `\bcame\s+out\b`, `\bdisplaced\b`, `\bmoved\b`)},
	{Name: "Blood clots", Terms: terms(`\bblood\s+clots?\b`, `\bdvt\b`, `\bthrombos[ie]s\b`, `\bpulmonary\s+embolism\b`, `\bpe\b`)},
	{Name: "Brain fog", Terms: terms(`\bbrain\s+fog\b`, `\bfog(?:gy|giness)\b`, `\bcan'?t\s+(?:think|concentrate|focus)\b`)},
	{Name: "Dizziness", Terms: terms(`\bdizz(?:y|iness)\b`, `\blightheaded\b`, `\bfaint(?:ing|ed)?\b`)},
}
