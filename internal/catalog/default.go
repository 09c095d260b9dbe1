package catalog

import "time"

// DefaultTimeout applies to catalog file entries without a timeout.
const DefaultTimeout = time.Hour

// gtest builds a single-device gtest entry.
func gtest(id string, timeout time.Duration, desc string, args ...string) TestSpec {
	return TestSpec{
		ID:          id,
		Executable:  id,
		Args:        args,
		Applicable:  MinDevices(1),
		Requirement: requirement(1),
		Timeout:     timeout,
		Rule:        ExitCodeAndOutputPattern,
		PassPattern: GTestPassPattern,
		FailPattern: GTestFailPattern,
		NeedsData:   true,
		Description: desc,
	}
}

// Default returns the standard compatibility battery in run order.
func Default() *Catalog {
	multi := gtest("multiple_tpus_inference_stress_test", time.Hour,
		"Concurrent inference on every attached accelerator",
		"--num_inferences=5000")
	multi.Applicable, multi.Requirement = MinDevices(2), requirement(2)

	bench := TestSpec{
		ID:          "models_benchmark",
		Executable:  "models_benchmark",
		Args:        []string{"--benchmark_color=false"},
		Applicable:  MinDevices(1),
		Requirement: requirement(1),
		Timeout:     time.Hour,
		Rule:        ExitCodeOnly,
		NeedsData:   true,
		Description: "Inference latency of the reference models",
	}

	return MustNew(
		gtest("tflite_utils_test", 10*time.Minute,
			"Runtime and interpreter helpers"),
		gtest("inference_stress_test", 2*time.Hour,
			"Repeated inference, with and without sleeps between runs",
			"--stress_test_runs=10000", "--stress_with_sleep_test_runs=200"),
		gtest("model_loading_stress_test", 30*time.Minute,
			"Repeated model loading and unloading",
			"--stress_test_runs=50"),
		gtest("inference_repeatability_test", time.Hour,
			"Bit-exact results across repeated inference",
			"--stress_test_runs=1000", "--gtest_repeat=20"),
		gtest("classification_models_test", 2*time.Hour,
			"Classification model accuracy",
			"--gtest_repeat=10", "--gtest_filter=-*tfhub_tf2_resnet_50_imagenet_ptq*"),
		gtest("detection_models_test", 2*time.Hour,
			"Detection model accuracy",
			"--gtest_repeat=100"),
		gtest("segmentation_models_test", 2*time.Hour,
			"Segmentation model accuracy",
			"--gtest_repeat=100"),
		multi,
		bench,
	)
}
