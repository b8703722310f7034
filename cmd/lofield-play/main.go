package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/mitchellfyi/lofield"
	"github.com/mitchellfyi/lofield/engine"
	"github.com/mitchellfyi/lofield/version"
)

func main() {
	play := flag.Bool("p", false, "Play the input tracks live (default behaviour when no other output is defined).")
	wavOut := flag.Bool("w", false, "Render the track offline and output a .wav file.")
	recordingFile := flag.String("r", "", "Automation recording (.yml) to replay during the offline render.")
	duration := flag.Float64("d", 30, "Offline render duration in seconds.")
	rate := flag.Int("rate", 44100, "Offline render sample rate.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the working directory.")
	estimate := flag.Bool("e", false, "Print the estimated render size instead of rendering.")
	interactive := flag.Bool("i", false, "Interactive mode: edit and play a program against the live runtime.")
	versionFlag := flag.Bool("v", false, "Print version.")
	help := flag.Bool("h", false, "Show help.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *interactive {
		os.Exit(interactiveLoop())
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*wavOut && !*estimate {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the track
	}
	var recording *lofield.Recording
	if *recordingFile != "" {
		f, err := os.Open(*recordingFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not open recording %v: %v\n", *recordingFile, err)
			os.Exit(1)
		}
		rec, err := lofield.ReadRecording(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not parse recording %v: %v\n", *recordingFile, err)
			os.Exit(1)
		}
		recording = &rec
	}
	process := func(filename string) error {
		track, err := readTrack(filename)
		if err != nil {
			return err
		}
		if *estimate {
			size := lofield.EstimateFileSize(lofield.FormatWav, *duration, *rate)
			fmt.Printf("%s: %d bytes (%.1fs wav at %d Hz)\n", filename, size, *duration, *rate)
		}
		if *wavOut {
			blob, err := engine.Render(track.Source, engine.RenderOptions{
				Format:          lofield.FormatWav,
				DurationSeconds: *duration,
				SampleRate:      *rate,
				Recording:       recording,
				Progress: func(p lofield.ExportProgress) {
					fmt.Printf("%v (%d%%)\n", p.Phase, p.Percent)
				},
			})
			if err != nil {
				return fmt.Errorf("could not render %v: %w", filename, err)
			}
			if err := output(filename, *directory, ".wav", blob); err != nil {
				return fmt.Errorf("error outputting .wav file: %w", err)
			}
		}
		if *play {
			return playTrack(track)
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if err := process(param); err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
			retval = 1
		}
	}
	os.Exit(retval)
}

// readTrack loads a performance: .yml files are parsed as track files,
// anything else is treated as raw program text.
func readTrack(filename string) (lofield.Track, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return lofield.Track{}, fmt.Errorf("could not read file %v: %w", filename, err)
	}
	ext := filepath.Ext(filename)
	if ext == ".yml" || ext == ".yaml" {
		return lofield.ReadTrack(strings.NewReader(string(data)))
	}
	_, name := filepath.Split(filename)
	return lofield.Track{Name: strings.TrimSuffix(name, ext), Source: string(data)}, nil
}

func playTrack(track lofield.Track) error {
	rt := engine.Live()
	if err := rt.Play(track.Source); err != nil {
		return err
	}
	if track.BPM > 0 {
		rt.Transport().SetBPM(track.BPM)
	}
	fmt.Printf("playing %v, press ctrl-c to stop\n", track.Name)
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt
	rt.Stop()
	return nil
}

func output(filename, directory, extension string, contents []byte) error {
	_, name := filepath.Split(filename)
	dir := directory
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("could not get working directory, specify the output directory explicitly: %w", err)
		}
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not create output directory %v: %w", dir, err)
	}
	f := filepath.Join(dir, name)
	if err := os.WriteFile(f, contents, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %w", f, err)
	}
	return nil
}

// interactiveLoop runs a small line-based session against the live runtime:
// plain lines accumulate into the program, colon commands control playback.
func interactiveLoop() int {
	l := liner.NewLiner()
	defer l.Close()
	l.SetCtrlCAborts(true)
	rt := engine.Live()
	var program []string
	fmt.Println("lofield interactive; :play :stop :reset :state :log :clear :quit")
	for {
		input, err := l.Prompt("lofield> ")
		if err != nil {
			rt.Stop()
			return 0
		}
		l.AppendHistory(input)
		switch strings.TrimSpace(input) {
		case ":quit", ":q":
			rt.Stop()
			return 0
		case ":play":
			if err := rt.Play(strings.Join(program, "\n")); err != nil {
				fmt.Fprintf(os.Stderr, "play failed: %v\n", err)
			}
		case ":stop":
			rt.Stop()
		case ":reset":
			rt.Reset()
			program = nil
		case ":state":
			fmt.Println(rt.State())
		case ":log":
			for _, e := range rt.Events() {
				fmt.Printf("%v %v %v\n", e.At.Format("15:04:05.000"), e.Kind, e.Message)
			}
		case ":clear":
			program = nil
		default:
			program = append(program, input)
		}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Lofield command line utility for playing and rendering performance programs.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
