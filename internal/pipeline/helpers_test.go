package pipeline

// 测试用的姿态序列构造工具。
// 坐标体系：归一化 [0,1]，y 向下为正，脚 y≈0.9 为地面。

// testKeypoints 生成一套站姿关节点，脚部 y 可调
func testKeypoints(footY float64) []Keypoint {
	kps := make([]Keypoint, NumJoints)
	for i := range kps {
		kps[i] = Keypoint{X: 0.5, Y: 0.5, Confidence: 0.9}
	}
	kps[JointNose] = Keypoint{X: 0.5, Y: 0.2, Confidence: 0.9}
	kps[JointLeftShoulder] = Keypoint{X: 0.45, Y: 0.35, Confidence: 0.9}
	kps[JointRightShoulder] = Keypoint{X: 0.55, Y: 0.35, Confidence: 0.9}
	kps[JointLeftElbow] = Keypoint{X: 0.4, Y: 0.45, Confidence: 0.9}
	kps[JointRightElbow] = Keypoint{X: 0.6, Y: 0.45, Confidence: 0.9}
	kps[JointLeftWrist] = Keypoint{X: 0.38, Y: 0.55, Confidence: 0.9}
	kps[JointRightWrist] = Keypoint{X: 0.62, Y: 0.55, Confidence: 0.9}
	kps[JointLeftIndex] = Keypoint{X: 0.37, Y: 0.57, Confidence: 0.9}
	kps[JointRightIndex] = Keypoint{X: 0.63, Y: 0.57, Confidence: 0.9}
	kps[JointLeftHip] = Keypoint{X: 0.46, Y: 0.55, Confidence: 0.9}
	kps[JointRightHip] = Keypoint{X: 0.54, Y: 0.55, Confidence: 0.9}
	kps[JointLeftKnee] = Keypoint{X: 0.38, Y: footY - 0.18, Confidence: 0.9}
	kps[JointRightKnee] = Keypoint{X: 0.62, Y: footY - 0.18, Confidence: 0.9}
	kps[JointLeftAnkle] = Keypoint{X: 0.45, Y: footY - 0.02, Confidence: 0.9}
	kps[JointRightAnkle] = Keypoint{X: 0.55, Y: footY - 0.02, Confidence: 0.9}
	kps[JointLeftFoot] = Keypoint{X: 0.44, Y: footY, Confidence: 0.9}
	kps[JointRightFoot] = Keypoint{X: 0.56, Y: footY, Confidence: 0.9}
	return kps
}

// testFrame 生成单帧完整姿态（含派生特征）
func testFrame(index int, footY float64) PoseFrame {
	pf := PoseFrame{
		FrameIndex:  index,
		TimestampMs: float64(index) * 1000.0 / 15.0,
		Keypoints:   testKeypoints(footY),
	}
	computeDerived(&pf)
	return pf
}

// testSeries 生成 n 帧站姿序列并标记滞空。airborne 列出滞空帧的下标。
func testSeries(n int, airborne ...int) []PoseFrame {
	up := make(map[int]bool, len(airborne))
	for _, i := range airborne {
		up[i] = true
	}
	series := make([]PoseFrame, n)
	for i := range series {
		footY := 0.9
		if up[i] {
			footY = 0.7 // 高于地面阈值，判定滞空
		}
		series[i] = testFrame(i, footY)
	}
	markAirborne(series)
	return series
}

// testEstimate 生成一个可用的推理输出
func testEstimate(footY, confidence float64) *PoseEstimate {
	kps := testKeypoints(footY)
	for i := range kps {
		kps[i].Confidence = confidence
	}
	return &PoseEstimate{Detected: true, Keypoints: kps}
}

// testRawFrames 生成 n 个空白采样帧
func testRawFrames(n int) []RawFrame {
	frames := make([]RawFrame, n)
	for i := range frames {
		frames[i] = RawFrame{
			Index:       i,
			TimestampMs: float64(i) * 1000.0 / 15.0,
			Width:       sampleWidth,
			Height:      sampleHeight,
		}
	}
	return frames
}
