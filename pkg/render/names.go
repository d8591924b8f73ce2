package render

import (
	"fmt"
	"strings"
)

// Name generation styles. The style decides which word classes join
// and with what separator:
//
//	""       name + "-" + 4 hex chars
//	"ubuntu" adverb-adjective-name
//	"docker" adjective_name
//	"full"   adverb-adjective-name-4 hex chars
//
// A prefix argument is prepended verbatim.

var nameAdjectives = []string{
	"amber", "bold", "brave", "bright", "calm", "clever", "cosmic",
	"crimson", "daring", "eager", "fierce", "gentle", "golden", "happy",
	"keen", "lively", "lucky", "mellow", "noble", "proud", "quiet",
	"rapid", "silent", "swift", "vivid", "wild",
}

var nameAdverbs = []string{
	"boldly", "calmly", "deeply", "gently", "gladly", "keenly",
	"lightly", "madly", "neatly", "proudly", "quickly", "rarely",
	"sharply", "slowly", "softly", "truly",
}

var animalNames = []string{
	"badger", "bison", "condor", "coyote", "crane", "dolphin", "falcon",
	"ferret", "gecko", "heron", "ibex", "jackal", "koala", "lemur",
	"lynx", "marmot", "narwhal", "ocelot", "osprey", "otter", "panther",
	"puffin", "raven", "tapir", "viper", "wombat",
}

var cosmicNames = []string{
	"andromeda", "antares", "callisto", "cassiopeia", "ceres", "cygnus",
	"deneb", "europa", "ganymede", "halley", "hyperion", "io", "lyra",
	"nebula", "nova", "orion", "phobos", "polaris", "pulsar", "quasar",
	"rigel", "sirius", "titan", "vega",
}

var mythologyNames = []string{
	"apollo", "artemis", "athena", "atlas", "boreas", "calypso",
	"charon", "freya", "hades", "helios", "hermes", "hydra", "icarus",
	"janus", "loki", "medusa", "nyx", "odin", "orpheus", "pegasus",
	"perseus", "selene", "thor", "triton",
}

func pick(list []string) (string, error) {
	idx, err := randInt(len(list))
	if err != nil {
		return "", err
	}
	return list[idx], nil
}

func hexSuffix() (string, error) {
	return randomFrom(charsetHex, 4)
}

// composeName joins the word classes for one style preset.
func composeName(prefix, style string, names []string) (string, error) {
	name, err := pick(names)
	if err != nil {
		return "", err
	}
	var parts []string
	var sep string
	switch style {
	case "":
		suffix, err := hexSuffix()
		if err != nil {
			return "", err
		}
		parts, sep = []string{name, suffix}, "-"
	case "ubuntu":
		adverb, err := pick(nameAdverbs)
		if err != nil {
			return "", err
		}
		adjective, err := pick(nameAdjectives)
		if err != nil {
			return "", err
		}
		parts, sep = []string{adverb, adjective, name}, "-"
	case "docker":
		adjective, err := pick(nameAdjectives)
		if err != nil {
			return "", err
		}
		parts, sep = []string{adjective, name}, "_"
	case "full":
		adverb, err := pick(nameAdverbs)
		if err != nil {
			return "", err
		}
		adjective, err := pick(nameAdjectives)
		if err != nil {
			return "", err
		}
		suffix, err := hexSuffix()
		if err != nil {
			return "", err
		}
		parts, sep = []string{adverb, adjective, name, suffix}, "-"
	default:
		return "", fmt.Errorf("unknown name style %q (want \"\", ubuntu, docker or full)", style)
	}
	return prefix + strings.Join(parts, sep), nil
}

func nameArgs(args []any) (prefix, style string, err error) {
	prefix, err = argString(args, 0, "")
	if err != nil {
		return "", "", err
	}
	style, err = argString(args, 1, "")
	return prefix, style, err
}

// genAnimalName: generate_animalname(prefix="", style="").
func genAnimalName(args []any) (any, error) {
	prefix, style, err := nameArgs(args)
	if err != nil {
		return nil, err
	}
	return composeName(prefix, style, animalNames)
}

// genCosmicName: generate_cosmicname(prefix="", style="").
func genCosmicName(args []any) (any, error) {
	prefix, style, err := nameArgs(args)
	if err != nil {
		return nil, err
	}
	return composeName(prefix, style, cosmicNames)
}

// genMythologyName: generate_mythologyname(prefix="", style="").
func genMythologyName(args []any) (any, error) {
	prefix, style, err := nameArgs(args)
	if err != nil {
		return nil, err
	}
	return composeName(prefix, style, mythologyNames)
}
