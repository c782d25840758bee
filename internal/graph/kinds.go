package graph

// kindWidgetOrder maps well-known node kinds (lower-cased) to the expected
// positional order of their widget values.  An empty name marks a position
// that is UI-only state (e.g. KSampler's control_after_generate combo) and
// is consumed without producing a job input.
//
// The orders are inferred from observed litegraph exports and are best-effort
// heuristics only; link bindings and declared slot names always take
// precedence over this table.
var kindWidgetOrder = map[string][]string{
	"ksampler":               {"seed", "", "steps", "cfg", "sampler_name", "scheduler", "denoise"},
	"ksampleradvanced":       {"add_noise", "noise_seed", "", "steps", "cfg", "sampler_name", "scheduler", "start_at_step", "end_at_step", "return_with_leftover_noise"},
	"checkpointloadersimple": {"ckpt_name"},
	"checkpointloader":       {"config_name", "ckpt_name"},
	"vaeloader":              {"vae_name"},
	"cliploader":             {"clip_name", "type"},
	"dualcliploader":         {"clip_name1", "clip_name2", "type"},
	"triplecliploader":       {"clip_name1", "clip_name2", "clip_name3"},
	"unetloader":             {"unet_name", "weight_dtype"},
	"loraloader":             {"lora_name", "strength_model", "strength_clip"},
	"loraloadermodelonly":    {"lora_name", "strength_model"},
	"cliptextencode":         {"text"},
	"cliptextencodesdxl":     {"width", "height", "crop_w", "crop_h", "target_width", "target_height", "text_g", "text_l"},
	"loadimage":              {"image", ""},
	"loadimagemask":          {"image", "channel", ""},
	"saveimage":              {"filename_prefix"},
	"emptylatentimage":       {"width", "height", "batch_size"},
	"emptysd3latentimage":    {"width", "height", "batch_size"},
	"latentupscale":          {"upscale_method", "width", "height", "crop"},
	"latentupscaleby":        {"upscale_method", "scale_by"},
	"imagescale":             {"upscale_method", "width", "height", "crop"},
	"imagescaleby":           {"upscale_method", "scale_by"},
	"upscalemodelloader":     {"model_name"},
	"clipsetlastlayer":       {"stop_at_clip_layer"},
	"fluxguidance":           {"guidance"},
	"modelsamplingflux":      {"max_shift", "base_shift", "width", "height"},
	"modelsamplingsd3":       {"shift"},
	"randomnoise":            {"noise_seed", ""},
	"basicscheduler":         {"scheduler", "steps", "denoise"},
	"ksamplerselect":         {"sampler_name"},
	"controlnetloader":       {"control_net_name"},
	"controlnetapply":        {"strength"},
	"vaeencode":              {},
	"vaedecode":              {},
	"previewimage":           {},
}
