package convert

import "strconv"

// scaleFilters maps the advertised output resolutions to their scale filter
// arguments. Any other resolution value keeps the source dimensions.
var scaleFilters = map[string]string{
	"1920x1080": "1920:1080",
	"1280x720":  "1280:720",
	"854x480":   "854:480",
}

func baseArgs(inputPath string, settings Settings) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libvpx-vp9",
		"-crf", strconv.Itoa(settings.Quality),
		"-b:v", strconv.Itoa(settings.Bitrate) + "k",
		"-deadline", "good",
		"-cpu-used", "4",
		"-auto-alt-ref", "0",
	}

	if filter, ok := scaleFilters[settings.Resolution]; ok {
		args = append(args, "-vf", "scale="+filter)
	}
	if settings.FrameRate != 30 {
		args = append(args, "-r", strconv.Itoa(settings.FrameRate))
	}

	return args
}

// SinglePassArgs builds the argument list for a one-shot encode.
func SinglePassArgs(inputPath, outputPath string, settings Settings) []string {
	return append(baseArgs(inputPath, settings), "-f", "webm", outputPath)
}

// FirstPassArgs builds the analysis pass of a two-pass encode. The pass
// writes statistics under passLogPrefix and discards its media output.
func FirstPassArgs(inputPath, passLogPrefix string, settings Settings) []string {
	return append(baseArgs(inputPath, settings),
		"-passlogfile", passLogPrefix,
		"-pass", "1",
		"-f", "null", "-",
	)
}

// SecondPassArgs builds the encode pass of a two-pass encode, consuming the
// statistics produced by the first pass.
func SecondPassArgs(inputPath, outputPath, passLogPrefix string, settings Settings) []string {
	return append(baseArgs(inputPath, settings),
		"-passlogfile", passLogPrefix,
		"-pass", "2",
		"-f", "webm", outputPath,
	)
}
