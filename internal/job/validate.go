package job

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// maxSeconds is the largest whole-second value that fits in a time.Duration.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// FieldError describes one invalid or missing field of a job description.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validate converts the decoded document into a Description, collecting
// every field error instead of stopping at the first one.
func (f *fileDescription) validate() (*Description, error) {
	var errs []error

	desc := &Description{}
	if f.RestartBridge != nil {
		desc.RestartBridge = *f.RestartBridge
	}

	project, err := pick("ueProject", "engineProjectPath", f.UEProject, f.EngineProjectPath)
	if err != nil {
		errs = append(errs, err)
	} else if project == nil || strings.TrimSpace(*project) == "" {
		errs = append(errs, FieldError{Field: "ueProject", Message: "engine project path is required"})
	} else {
		desc.EngineProject = strings.TrimSpace(*project)
	}

	if len(f.Simulations) == 0 {
		errs = append(errs, FieldError{Field: "simulations", Message: "at least one simulation is required"})
	}

	for i := range f.Simulations {
		sim, simErrs := f.Simulations[i].validate(i)
		errs = append(errs, simErrs...)
		desc.Simulations = append(desc.Simulations, sim)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return desc, nil
}

func (s *fileSimulation) validate(index int) (Simulation, []error) {
	var errs []error
	field := func(name string) string {
		return fmt.Sprintf("simulations[%d].%s", index, name)
	}

	sim := Simulation{Name: strings.TrimSpace(s.Name)}
	if sim.Name == "" {
		sim.Name = fmt.Sprintf("simulation-%d", index+1)
	}

	switch {
	case s.Iterations == nil:
		errs = append(errs, FieldError{Field: field("iterations"), Message: "is required"})
	case *s.Iterations < 1:
		errs = append(errs, FieldError{Field: field("iterations"), Message: fmt.Sprintf("must be at least 1 (got %d)", *s.Iterations)})
	default:
		sim.Iterations = *s.Iterations
	}

	requireString := func(name, alias string, a, b *string) string {
		v, err := pick(field(name), alias, a, b)
		if err != nil {
			errs = append(errs, err)
			return ""
		}
		if v == nil || strings.TrimSpace(*v) == "" {
			errs = append(errs, FieldError{Field: field(name), Message: "is required"})
			return ""
		}
		return strings.TrimSpace(*v)
	}

	sim.Scenario = requireString("ueScenario", "engineScenario", s.UEScenario, s.EngineScenario)
	sim.LaunchPackage = requireString("ros2Pkg", "launchPackage", s.ROS2Pkg, s.LaunchPackage)
	sim.LaunchFile = normalizeLaunchFile(sim.LaunchPackage,
		requireString("ros2Launch", "launchFile", s.ROS2Launch, s.LaunchFile))

	readiness, err := pick(field("timeout"), "readinessTimeoutSeconds", s.Timeout, s.ReadinessTimeoutSeconds)
	switch {
	case err != nil:
		errs = append(errs, err)
	case readiness == nil:
		errs = append(errs, FieldError{Field: field("timeout"), Message: "is required"})
	case *readiness < 0:
		errs = append(errs, FieldError{Field: field("timeout"), Message: fmt.Sprintf("must not be negative (got %d)", *readiness)})
	case int64(*readiness) > maxSeconds:
		errs = append(errs, FieldError{Field: field("timeout"), Message: fmt.Sprintf("must be at most %d seconds (got %d)", maxSeconds, *readiness)})
	default:
		sim.ReadinessTimeout = time.Duration(*readiness) * time.Second
	}

	maxDuration, err := pick(field("maxSimTime"), "maxDurationSeconds", s.MaxSimTime, s.MaxDurationSeconds)
	switch {
	case err != nil:
		errs = append(errs, err)
	case maxDuration == nil:
		errs = append(errs, FieldError{Field: field("maxSimTime"), Message: "is required"})
	case *maxDuration < 1:
		errs = append(errs, FieldError{Field: field("maxSimTime"), Message: fmt.Sprintf("must be at least 1 second (got %d)", *maxDuration)})
	case int64(*maxDuration) > maxSeconds:
		errs = append(errs, FieldError{Field: field("maxSimTime"), Message: fmt.Sprintf("must be at most %d seconds (got %d)", maxSeconds, *maxDuration)})
	default:
		sim.MaxDuration = time.Duration(*maxDuration) * time.Second
	}

	return sim, errs
}

// pick resolves a canonical key and its alias. Setting both to different
// values is an error.
func pick[T comparable](field, alias string, canonical, aliased *T) (*T, error) {
	if canonical != nil && aliased != nil && *canonical != *aliased {
		return nil, FieldError{Field: field, Message: fmt.Sprintf("conflicts with %s", alias)}
	}
	if canonical != nil {
		return canonical, nil
	}
	return aliased, nil
}

// normalizeLaunchFile turns "pkg file.launch.py" into "file.launch.py" when
// the first word repeats the package name. The wizard's default value has
// that shape.
func normalizeLaunchFile(pkg, launchFile string) string {
	fields := strings.Fields(launchFile)
	if len(fields) == 2 && fields[0] == pkg {
		return fields[1]
	}
	return launchFile
}
